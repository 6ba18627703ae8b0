package runtimeapi

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/relay-bss/batchmender/models"
)

// DiscoverTickets lists candidate problem tickets for category, filtered
// server-side to status=pending and client-side to
// remediation_state=DETECTED.
func (c *Client) DiscoverTickets(ctx context.Context, category string, limit int) ([]DiscoveredTicket, error) {
	path := fmt.Sprintf("/problemTickets?category=%s&status=pending&limit=%d", category, limit)
	body, err := c.do(ctx, timeoutStandard, "GET", path, nil)
	if err != nil {
		return nil, err
	}
	var raw []rawTicket
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decoding tickets: %w", err)
	}

	out := make([]DiscoveredTicket, 0, len(raw))
	for _, t := range raw {
		chars, err := decodeCharacteristics(t.Characteristic)
		if err != nil {
			continue
		}
		if characteristicValue(chars, "remediation_state") != "DETECTED" {
			continue
		}
		out = append(out, DiscoveredTicket{
			TicketID: t.ID,
			TargetID: t.TargetID,
		})
	}
	return out, nil
}

// UpdateTicket updates both the status field and the remediation_state
// characteristic, which the runtime treats as distinct server-side fields.
func (c *Client) UpdateTicket(ctx context.Context, ticketID string, status models.TicketStatus, remediationState, reason string) error {
	chars := []Characteristic{{Name: "remediation_state", Value: remediationState}}
	if reason != "" {
		chars = append(chars, Characteristic{Name: "reason", Value: reason})
	}
	patch := map[string]any{
		"status":         string(status),
		"characteristic": encodeCharacteristics(chars),
	}
	_, err := c.do(ctx, timeoutStandard, "PATCH", "/problemTickets/"+ticketID, patch)
	return err
}

// CreateProblemTicket creates a pending problem ticket for targetID with the
// remediation_state characteristic initialised to DETECTED. Used by OE
// discovery, which materialises a ticket for every candidate service
// it finds; Solution tickets are created upstream.
func (c *Client) CreateProblemTicket(ctx context.Context, category models.ScheduleCategory, targetID string) error {
	payload := map[string]any{
		"category":       string(category),
		"targetId":       targetID,
		"status":         string(models.TicketPending),
		"characteristic": encodeCharacteristics([]Characteristic{{Name: "remediation_state", Value: "DETECTED"}}),
	}
	_, err := c.do(ctx, timeoutStandard, "POST", "/problemTickets", payload)
	return err
}

// GetProblemTicket fetches a single ticket by id.
func (c *Client) GetProblemTicket(ctx context.Context, id string) (*models.ProblemTicket, error) {
	body, err := c.do(ctx, timeoutStandard, "GET", "/problemTickets/"+id, nil)
	if err != nil {
		return nil, err
	}
	var raw rawTicket
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decoding ticket: %w", err)
	}
	chars, _ := decodeCharacteristics(raw.Characteristic)
	return &models.ProblemTicket{
		ID:               raw.ID,
		TargetID:         raw.TargetID,
		Category:         models.ScheduleCategory(raw.Category),
		Status:           models.TicketStatus(raw.Status),
		RemediationState: characteristicValue(chars, "remediation_state"),
		Reason:           characteristicValue(chars, "reason"),
	}, nil
}
