package payment

// WeChat Pay trade states.
const (
	TradeStateSuccess    = "SUCCESS"
	TradeStateRefund     = "REFUND"
	TradeStateNotPay     = "NOTPAY"
	TradeStateClosed     = "CLOSED"
	TradeStateRevoked    = "REVOKED"
	TradeStateUserPaying = "USERPAYING"
	TradeStatePayError   = "PAYERROR"
)

// MapTradeState maps a provider trade state to a session status.
// Unknown states are pending.
func MapTradeState(state string) PaymentStatus {
	switch state {
	case TradeStateSuccess:
		return StatusCaptured
	case TradeStateRevoked, TradeStateNotPay, TradeStateRefund, TradeStateClosed:
		return StatusCanceled
	case TradeStateUserPaying:
		return StatusPending
	case TradeStatePayError:
		return StatusError
	default:
		return StatusPending
	}
}

// MapTradeStateToAction maps a notified trade state to a lifecycle action.
// Unlike MapTradeState, unknown states do not advance anything.
func MapTradeStateToAction(state string) Action {
	switch state {
	case TradeStateSuccess:
		return ActionAuthorized
	case TradeStateRevoked, TradeStateNotPay, TradeStateRefund, TradeStateClosed:
		return ActionCanceled
	case TradeStateUserPaying:
		return ActionPending
	case TradeStatePayError:
		return ActionFailed
	default:
		return ActionNotSupported
	}
}

// StatusForAction returns the session status an action moves to.
// ok is false for actions that leave the status alone.
func StatusForAction(action Action) (status PaymentStatus, ok bool) {
	switch action {
	case ActionAuthorized:
		return StatusCaptured, true
	case ActionCanceled:
		return StatusCanceled, true
	case ActionFailed:
		return StatusError, true
	default:
		return "", false
	}
}
