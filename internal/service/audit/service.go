package audit

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"

	"github.com/jwalitptl/clinic-scheduling/internal/model"
	"github.com/jwalitptl/clinic-scheduling/internal/repository"
)

// ErrChainBroken is returned by Verify when an entry's hash or sequence does not
// follow from its predecessor.
var ErrChainBroken = errors.New("status log chain broken")

// Service is the append-only status history of appointments.
type Service struct {
	repo repository.StatusLogRepository
	now  func() time.Time
}

func NewService(repo repository.StatusLogRepository) *Service {
	return &Service{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Append assigns the next sequence number and chains the entry onto the
// appointment's previous one. Callers run it inside the atomic unit that
// changed the appointment.
func (s *Service) Append(ctx context.Context, entry *model.AppointmentStatusLog) error {
	var seq int64 = 1
	prevHash := ""

	last, err := s.repo.Last(ctx, entry.AppointmentID)
	switch {
	case err == nil:
		seq = last.Seq + 1
		prevHash = last.Hash
	case errors.Is(err, repository.ErrNotFound):
	default:
		return fmt.Errorf("failed to read last status log: %w", err)
	}

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.Seq = seq
	// postgres keeps microseconds; the hash must survive a round trip
	entry.CreatedAt = s.now().Truncate(time.Microsecond)
	entry.PrevHash = prevHash
	entry.Hash = Hash(entry)

	if err := s.repo.Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to append status log: %w", err)
	}
	return nil
}

// History returns the appointment's entries oldest first.
func (s *Service) History(ctx context.Context, appointmentID uuid.UUID) ([]*model.AppointmentStatusLog, error) {
	entries, err := s.repo.List(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list status logs: %w", err)
	}
	return entries, nil
}

// Hash is the SHA3-256 digest of the entry's content and its PrevHash.
func Hash(e *model.AppointmentStatusLog) string {
	prev := ""
	if e.PreviousStatus != nil {
		prev = string(*e.PreviousStatus)
	}
	fields := []string{
		e.PrevHash,
		e.AppointmentID.String(),
		strconv.FormatInt(e.Seq, 10),
		prev,
		string(e.NewStatus),
		e.ActorID.String(),
		string(e.ActorRole),
		e.Reason,
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	sum := sha3.Sum256([]byte(strings.Join(fields, "\x1f")))
	return hex.EncodeToString(sum[:])
}

// Verify checks that entries form an unbroken chain starting at seq 1.
func Verify(entries []*model.AppointmentStatusLog) error {
	prevHash := ""
	for i, e := range entries {
		if e.Seq != int64(i+1) {
			return fmt.Errorf("%w: expected seq %d, got %d", ErrChainBroken, i+1, e.Seq)
		}
		if e.PrevHash != prevHash {
			return fmt.Errorf("%w: seq %d does not point at its predecessor", ErrChainBroken, e.Seq)
		}
		if Hash(e) != e.Hash {
			return fmt.Errorf("%w: seq %d content does not match its hash", ErrChainBroken, e.Seq)
		}
		prevHash = e.Hash
	}
	return nil
}
