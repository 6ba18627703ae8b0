package solution

import (
	"fmt"
	"strings"

	"github.com/relay-bss/batchmender/internal/runtimeapi"
)

const macdEligibilityAgeDays = 60

var macdSensitiveStages = map[string]bool{
	"Order Enrichment": true,
	"Submitted":        true,
}

// macdEligible is the pure eligibility predicate over the VALIDATE response's
// macd_details. It never mutates its input, so calling it twice on
// the same details always yields the same verdict and reason.
func macdEligible(details *runtimeapi.MACDDetails) (bool, string) {
	if details == nil || !details.MACDBasketExists {
		return true, ""
	}
	if len(details.BasketDetails) == 0 {
		return false, "macd basket flagged but no basket details returned"
	}

	var sensitive []string
	youngest := -1
	for _, b := range details.BasketDetails {
		if macdSensitiveStages[b.Stage] {
			sensitive = append(sensitive, b.Stage)
		}
		if youngest == -1 || b.AgeDays < youngest {
			youngest = b.AgeDays
		}
	}
	if len(sensitive) > 0 {
		return false, fmt.Sprintf("macd basket in sensitive stage(s): %s", strings.Join(sensitive, ", "))
	}
	if youngest < macdEligibilityAgeDays {
		return false, fmt.Sprintf("youngest macd basket is %d day(s) old, below the %d day threshold", youngest, macdEligibilityAgeDays)
	}
	return true, ""
}
