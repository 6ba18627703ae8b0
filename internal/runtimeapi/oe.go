package runtimeapi

import (
	"context"
	"encoding/json"
	"fmt"
)

// GetOEServiceInfo calls the OE "get info" primitive (step 1, FETCH).
func (c *Client) GetOEServiceInfo(ctx context.Context, serviceID string) (*OEServiceInfo, error) {
	body, err := c.do(ctx, timeoutStandard, "GET", "/migrated-services/"+serviceID, nil)
	if err != nil {
		return nil, err
	}
	var out OEServiceInfo
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decoding OE service info: %w", err)
	}
	return &out, nil
}

// UpdateOEAttachment calls the OE "update attachment" primitive (step 3,
// PERSIST), writing the serialised patched attachment back to the service.
func (c *Client) UpdateOEAttachment(ctx context.Context, serviceID, serialisedAttachment string) error {
	payload := map[string]any{"attachment_content": serialisedAttachment}
	_, err := c.do(ctx, timeoutStandard, "PUT", "/migrated-services/"+serviceID+"/attachment", payload)
	return err
}

// TriggerOERemediation calls the OE "trigger sync" primitive (step 4,
// TRIGGER_SYNC), asking the runtime to sync the patched service downstream.
func (c *Client) TriggerOERemediation(ctx context.Context, serviceID, productDefinitionName string) error {
	payload := map[string]any{"product_definition_name": productDefinitionName}
	_, err := c.do(ctx, timeoutTrigger, "POST", "/migrated-services/"+serviceID+"/remediations", payload)
	return err
}

// DiscoverOEServices scans for candidate OE services via the runtime's
// discovery filter.
func (c *Client) DiscoverOEServices(ctx context.Context, limit int) ([]DiscoveredTicket, error) {
	path := fmt.Sprintf("/migrated-services?has1867Issue=true&limit=%d", limit)
	body, err := c.do(ctx, timeoutStandard, "GET", path, nil)
	if err != nil {
		return nil, err
	}
	var entries []DiscoveredTicket
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("decoding OE discovery response: %w", err)
	}
	return entries, nil
}

// ResolveEnrichment performs three sequential enrichment lookups:
// service → billing_account_id; billing_account → name + contact;
// individual → contact_medium(email) → email_address. Any hop failing
// yields whatever has been collected so far — enrichment never hard-fails
// the caller.
func (c *Client) ResolveEnrichment(ctx context.Context, serviceID string) Enrichment {
	var enrichment Enrichment

	svc, err := c.do(ctx, timeoutStandard, "GET", "/services/"+serviceID, nil)
	if err != nil {
		return enrichment
	}
	var svcResp struct {
		ExternalID       string `json:"external_id"`
		BillingAccountID string `json:"billing_account_id"`
	}
	if err := json.Unmarshal(svc, &svcResp); err != nil {
		return enrichment
	}
	enrichment.ReservedNumber = svcResp.ExternalID
	enrichment.BillingAccountID = svcResp.BillingAccountID
	if svcResp.BillingAccountID == "" {
		return enrichment
	}

	ba, err := c.do(ctx, timeoutStandard, "GET", "/billingAccounts/"+svcResp.BillingAccountID, nil)
	if err != nil {
		return enrichment
	}
	var baResp struct {
		Name       string `json:"name"`
		ContactID  string `json:"contact_id"`
	}
	if err := json.Unmarshal(ba, &baResp); err != nil {
		return enrichment
	}
	enrichment.BillingAccountName = baResp.Name
	if baResp.ContactID == "" {
		return enrichment
	}

	contact, err := c.do(ctx, timeoutStandard, "GET", "/individuals/"+baResp.ContactID+"?contactMediumType=email", nil)
	if err != nil {
		return enrichment
	}
	var contactResp struct {
		EmailAddress string `json:"email_address"`
	}
	if err := json.Unmarshal(contact, &contactResp); err != nil {
		return enrichment
	}
	enrichment.PICEmail = contactResp.EmailAddress
	return enrichment
}
