package oe

import "strings"

// ServiceType is the OE variant's attachment schema discriminator.
type ServiceType string

const (
	ServiceVoice   ServiceType = "voice"
	ServiceFibre   ServiceType = "fibre"
	ServiceESMS    ServiceType = "esms"
	ServiceAccess  ServiceType = "access"
	ServiceUnknown ServiceType = ""
)

// schemaSubstring is the substring bound to each service type when locating
// the matching schema inside an attachment.
var schemaSubstring = map[ServiceType]string{
	ServiceVoice:  "Voice OE",
	ServiceFibre:  "Fibre Service OE",
	ServiceESMS:   "eSMS OE",
	ServiceAccess: "Access OE",
}

// mandatoryFields names, per service type, the logical fields that must be
// present for the service to be considered already-remediated.
var mandatoryFields = map[ServiceType][]string{
	ServiceVoice:  {"ReservedNumber", "ResourceSystemGroupID", "NumberStatus", "PICEmail"},
	ServiceFibre:  {"BillingAccount"},
	ServiceESMS:   {"ReservedNumber", "eSMSUserName"},
	ServiceAccess: {"BillingAccount", "PICEmail"},
}

// fieldAliases lists, per logical field, the case/whitespace-insensitive
// spellings the core recognises when scanning an attachment's attributes.
var fieldAliases = map[string][]string{
	"ReservedNumber":        {"ReservedNumber", "Reserved Number", "reserved_number"},
	"ResourceSystemGroupID": {"ResourceSystemGroupID", "Resource System Group ID", "resource_system_group_id"},
	"NumberStatus":          {"NumberStatus", "Number Status", "number_status"},
	"PICEmail":              {"PICEmail", "PIC Email", "pic_email"},
	"BillingAccount":        {"BillingAccount", "Billing Account", "billing_account"},
	"eSMSUserName":          {"eSMSUserName", "eSMS UserName", "esms_user_name"},
}

// onDiskName maps a canonical field name to its on-disk attribute spelling;
// fields not listed here keep their canonical name unchanged.
var onDiskName = map[string]string{
	"BillingAccount": "Billing Account",
	"PICEmail":       "PIC Email",
	"eSMSUserName":   "eSMS UserName",
}

// detectServiceType determines the service type from the product
// definition name (substring match), falling back to inspecting schema-key
// substrings inside the attachment. Schema keys like "Voice OE" only ever
// appear nested inside NonCommercialProduct entries, never at the
// attachment's top level, so the fallback walks the same shape applyPatch
// does.
func detectServiceType(productDefinitionName string, attachment map[string]any) ServiceType {
	if t := matchProductName(productDefinitionName); t != ServiceUnknown {
		return t
	}
	ncp, _ := attachment["NonCommercialProduct"].([]any)
	for _, entryAny := range ncp {
		entry, ok := entryAny.(map[string]any)
		if !ok {
			continue
		}
		for key := range entry {
			if t := matchProductName(key); t != ServiceUnknown {
				return t
			}
		}
	}
	return ServiceUnknown
}

func matchProductName(name string) ServiceType {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "voice"):
		return ServiceVoice
	case strings.Contains(lower, "fibre"):
		return ServiceFibre
	case strings.Contains(lower, "esms"), strings.Contains(lower, "e-sms"):
		return ServiceESMS
	case strings.Contains(lower, "access"):
		return ServiceAccess
	default:
		return ServiceUnknown
	}
}

// normalizeAttrName lowercases and strips all whitespace, so "PIC Email",
// "PICEmail" and "pic  email" all compare equal when matching attributes.
func normalizeAttrName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), ""))
}
