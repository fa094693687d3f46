package explorer

import (
	"strings"

	"lendvault/core/events"
	"lendvault/native/lending"
)

// FlowLabel returns the display label the explorer shows for an event.
func FlowLabel(evt events.Event) string {
	asset := strings.ToUpper(strings.TrimSpace(eventAsset(evt)))
	switch evt.Type {
	case lending.EventTypeDeposit:
		return "Supplied " + asset
	case lending.EventTypeWithdraw:
		return "Withdrew " + asset
	case lending.EventTypeBorrow:
		return "Borrowed " + asset
	case lending.EventTypeRepay:
		return "Repaid " + asset
	case lending.EventTypeLiquidate:
		collateral := strings.ToUpper(strings.TrimSpace(evt.Attributes["collateral_asset"]))
		return "Liquidated " + asset + " against " + collateral
	default:
		return evt.Type
	}
}
