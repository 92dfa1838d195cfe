package order

import (
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
)

// orderState implements the state pattern for order lifecycle transitions.
type orderState interface {
	Status() Status
	OnShip(o *Order, at time.Time) (orderState, error)
	OnDeliver(o *Order, at time.Time) (orderState, error)
	OnCancel(o *Order, at time.Time) (orderState, error)
}

func stateOf(s Status) (orderState, error) {
	switch s {
	case StatusProcessing:
		return processingState{}, nil
	case StatusShipped:
		return shippedState{}, nil
	case StatusDelivered:
		return deliveredState{}, nil
	case StatusCancelled:
		return cancelledState{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

type processingState struct{}

func (processingState) Status() Status { return StatusProcessing }

func (processingState) OnShip(*Order, time.Time) (orderState, error) {
	return shippedState{}, nil
}

func (processingState) OnDeliver(o *Order, at time.Time) (orderState, error) {
	o.DeliveredAt = &at
	return deliveredState{}, nil
}

func (processingState) OnCancel(*Order, time.Time) (orderState, error) {
	return cancelledState{}, nil
}

type shippedState struct{}

func (shippedState) Status() Status { return StatusShipped }

func (shippedState) OnShip(*Order, time.Time) (orderState, error) {
	return shippedState{}, nil
}

func (shippedState) OnDeliver(o *Order, at time.Time) (orderState, error) {
	o.DeliveredAt = &at
	return deliveredState{}, nil
}

func (shippedState) OnCancel(*Order, time.Time) (orderState, error) {
	return cancelledState{}, nil
}

// deliveredState accepts no transitions; it anchors review and exchange eligibility elsewhere.
type deliveredState struct{}

func (deliveredState) Status() Status { return StatusDelivered }

func (deliveredState) OnShip(*Order, time.Time) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

func (deliveredState) OnDeliver(*Order, time.Time) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

func (deliveredState) OnCancel(*Order, time.Time) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

type cancelledState struct{}

func (cancelledState) Status() Status { return StatusCancelled }

func (cancelledState) OnShip(*Order, time.Time) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

func (cancelledState) OnDeliver(*Order, time.Time) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

func (cancelledState) OnCancel(*Order, time.Time) (orderState, error) {
	return nil, ErrInvalidStateTransition
}

// Transition is the outcome of a status change. Release is non-empty only for the
// single transition that gives reserved stock back.
type Transition struct {
	From    Status
	To      Status
	Release []inventory.Record
}

// TransitionTo moves the order to target. Entering Cancelled with reserved stock
// clears InventoryReserved and hands the records to the caller, who must release
// them only after the new state is durable.
func (o *Order) TransitionTo(target Status, at time.Time) (*Transition, error) {
	current, err := stateOf(o.Status)
	if err != nil {
		return nil, err
	}

	var next orderState
	switch target {
	case StatusShipped:
		next, err = current.OnShip(o, at)
	case StatusDelivered:
		next, err = current.OnDeliver(o, at)
	case StatusCancelled:
		next, err = current.OnCancel(o, at)
	default:
		err = ErrInvalidStateTransition
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s -> %s", err, o.Status, target)
	}

	tr := &Transition{From: o.Status, To: next.Status()}
	if tr.To == StatusCancelled && o.InventoryReserved {
		tr.Release = o.ReleaseRecords()
		o.InventoryReserved = false
	}
	o.Status = next.Status()
	o.touch(at)
	return tr, nil
}
