package store

import (
	"errors"

	"github.com/kestrelvm/kestrel/sched"
	"github.com/kestrelvm/kestrel/vm"
)

// ActuatorWrite records one effect issued through the actuator interface.
type ActuatorWrite struct {
	Actor   uint32
	Channel int64
	Value   vm.Value
}

// NetMessage records one datagram sent through the network interface.
type NetMessage struct {
	Actor   uint32
	Channel int64
	Payload vm.Value
}

// Handler is the default host interface: persistence backed by the store,
// a step-counter clock, and deterministic in-memory sensor and network
// devices that tests and embedders seed up front. Every effect is recorded
// in call order, so two identical runs produce identical effect logs.
type Handler struct {
	store *Store

	sensors map[int64]vm.Value
	netIn   map[int64][]vm.Value

	Actuated []ActuatorWrite
	NetSent  []NetMessage
}

// NewHandler creates a handler over the given store. A nil store makes the
// persist host calls answer nil.
func NewHandler(s *Store) *Handler {
	return &Handler{
		store:   s,
		sensors: make(map[int64]vm.Value),
		netIn:   make(map[int64][]vm.Value),
	}
}

// SetSensor seeds the reading returned for a sensor channel.
func (h *Handler) SetSensor(channel int64, v vm.Value) {
	h.sensors[channel] = v
}

// QueueNetIn seeds an inbound network message for a channel. Messages are
// received in the order queued.
func (h *Handler) QueueNetIn(channel int64, v vm.Value) {
	h.netIn[channel] = append(h.netIn[channel], v)
}

// Invoke implements sched.HostHandler.
func (h *Handler) Invoke(ctx sched.HostContext, fn sched.HostFn, args []vm.Value) (vm.Value, error) {
	switch fn {
	case sched.HostClockRead:
		// The instruction counter is the only clock; wall time would
		// break replayability.
		return vm.FromSmallInt(int64(ctx.Step)), nil

	case sched.HostSensorRead:
		ch, ok := channelOf(args)
		if !ok {
			return vm.Nil, nil
		}
		if v, found := h.sensors[ch]; found {
			return v, nil
		}
		return vm.Nil, nil

	case sched.HostActuatorWrite:
		ch, ok := channelOf(args)
		if !ok || len(args) < 2 {
			return vm.False, nil
		}
		h.Actuated = append(h.Actuated, ActuatorWrite{Actor: ctx.ActorID, Channel: ch, Value: args[1]})
		return vm.True, nil

	case sched.HostNetSend:
		ch, ok := channelOf(args)
		if !ok || len(args) < 2 {
			return vm.False, nil
		}
		h.NetSent = append(h.NetSent, NetMessage{Actor: ctx.ActorID, Channel: ch, Payload: args[1]})
		return vm.True, nil

	case sched.HostNetRecv:
		ch, ok := channelOf(args)
		if !ok {
			return vm.Nil, nil
		}
		queue := h.netIn[ch]
		if len(queue) == 0 {
			return vm.Nil, nil
		}
		v := queue[0]
		h.netIn[ch] = queue[1:]
		return v, nil

	case sched.HostPersistRead:
		ch, ok := channelOf(args)
		if !ok || h.store == nil {
			return vm.Nil, nil
		}
		v, err := h.store.Get(ctx.ActorID, ch)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return vm.Nil, nil
			}
			return vm.Nil, err
		}
		return v, nil

	case sched.HostPersistWrite:
		ch, ok := channelOf(args)
		if !ok || len(args) < 2 || h.store == nil {
			return vm.False, nil
		}
		if err := h.store.Put(ctx.ActorID, ch, args[1]); err != nil {
			if errors.Is(err, ErrNotPersistable) {
				return vm.False, nil
			}
			return vm.False, err
		}
		return vm.True, nil
	}

	return vm.Nil, nil
}

// channelOf extracts the channel or key designator from the first argument.
// Small integers name channels directly; symbols name them by interned id.
func channelOf(args []vm.Value) (int64, bool) {
	if len(args) == 0 {
		return 0, false
	}
	switch {
	case args[0].IsSmallInt():
		return args[0].SmallInt(), true
	case args[0].IsSymbol():
		return int64(args[0].SymbolID()), true
	}
	return 0, false
}
