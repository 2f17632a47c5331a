package payment

import (
	"github.com/nostrmcp/bridge/internal/nostrevent"
	"github.com/nostrmcp/bridge/internal/rpcmsg"
)

// PmiTags builds ["pmi", p.PMI()] tags in processor preference order.
func PmiTags(processors []Processor) nostrevent.Tags {
	tags := make(nostrevent.Tags, 0, len(processors))
	for _, p := range processors {
		tags = append(tags, nostrevent.Tag{"pmi", p.PMI()})
	}
	return tags
}

// CapTags builds ["cap", "<kind>:<name>", price, currencyUnit] tags, one
// per named, supported capability. Unsupported methods or unnamed
// capabilities are skipped.
func CapTags(capabilities []PricedCapability) nostrevent.Tags {
	tags := make(nostrevent.Tags, 0, len(capabilities))
	for _, priced := range capabilities {
		kind, ok := capabilityKind(priced.Method)
		if !ok || priced.Name == "" {
			continue
		}
		price := priced.Amount
		if priced.MaxAmount != "" {
			price = priced.Amount + "-" + priced.MaxAmount
		}
		tags = append(tags, nostrevent.Tag{
			"cap",
			kind + ":" + priced.Name,
			price,
			priced.CurrencyUnit,
		})
	}
	return tags
}

func capabilityKind(method string) (string, bool) {
	switch method {
	case rpcmsg.MethodToolsCall:
		return "tool", true
	case rpcmsg.MethodPromptsGet:
		return "prompt", true
	case rpcmsg.MethodResourcesRead:
		return "resource", true
	default:
		return "", false
	}
}
