package payment

import (
	"context"
	"strings"
	"sync"

	"edufund-backend/internal/domain/payment"

	"github.com/google/uuid"
)

const (
	ModeConfirm = "confirm"
	ModePending = "pending"
	ModeFail    = "fail"
)

// Simulator stands in for a real payment rail during local runs and tests.
type Simulator struct {
	mu        sync.Mutex
	status    payment.Status
	submitted []payment.Instruction
}

func NewSimulator(mode string) (*Simulator, error) {
	s := &Simulator{}
	if err := s.SetMode(mode); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Simulator) SetMode(mode string) error {
	var st payment.Status
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case ModeConfirm, "":
		st = payment.StatusConfirmed
	case ModePending:
		st = payment.StatusPending
	case ModeFail:
		st = payment.StatusFailed
	default:
		return payment.ErrInvalidMode
	}
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
	return nil
}

func (s *Simulator) Submit(ctx context.Context, in payment.Instruction) (payment.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return payment.Receipt{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitted = append(s.submitted, in)

	r := payment.Receipt{Reference: "sim_" + uuid.NewString(), Status: s.status}
	if s.status == payment.StatusFailed {
		r.Message = "simulated rejection"
	}
	return r, nil
}

// Submitted returns a copy of every instruction seen so far.
func (s *Simulator) Submitted() []payment.Instruction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]payment.Instruction, len(s.submitted))
	copy(out, s.submitted)
	return out
}
