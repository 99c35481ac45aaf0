package cart

// Op identifies the mutation a line item is undergoing.
type Op string

const (
	OpNone           Op = ""
	OpCreateOrGet    Op = "create_or_get"
	OpAdd            Op = "add"
	OpUpdateQuantity Op = "update_quantity"
	OpRemove         Op = "remove"
	OpRefresh        Op = "refresh"
)

// opState implements the per-line operation lifecycle:
// idle -> pending(op) -> idle. A line never carries two pending operations;
// the transition is rejected before any network call is made.
type opState interface {
	Busy() bool
	Pending() Op
	Begin(op Op) (opState, error)
	Settle() opState
}

type idleState struct{}

func (idleState) Busy() bool  { return false }
func (idleState) Pending() Op { return OpNone }

func (idleState) Begin(op Op) (opState, error) {
	return pendingState{op: op}, nil
}

func (s idleState) Settle() opState { return s }

type pendingState struct{ op Op }

func (pendingState) Busy() bool    { return true }
func (s pendingState) Pending() Op { return s.op }

func (pendingState) Begin(Op) (opState, error) {
	return nil, ErrLineBusy
}

func (pendingState) Settle() opState { return idleState{} }

func (li *LineItem) ensureState() opState {
	if li.state == nil {
		li.state = idleState{}
	}
	return li.state
}

// BeginOp marks the line busy for the duration of a remote call. It fails
// with ErrLineBusy when an earlier operation has not settled yet.
func (li *LineItem) BeginOp(op Op) error {
	next, err := li.ensureState().Begin(op)
	if err != nil {
		return err
	}
	li.state = next
	return nil
}

// SettleOp returns the line to idle once the in-flight call resolved,
// regardless of outcome.
func (li *LineItem) SettleOp() {
	li.state = li.ensureState().Settle()
}

func (li *LineItem) Busy() bool { return li.ensureState().Busy() }

// PendingOp reports the operation currently in flight, if any.
func (li *LineItem) PendingOp() Op { return li.ensureState().Pending() }
