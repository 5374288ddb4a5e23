package core

import (
	"errors"
	"strings"
	"time"
)

const dayLayout = "2006-01-02"

type (
	// Day is a calendar date in the bot's local timezone, formatted
	// as 2006-01-02. Records are bucketed by the day they were
	// ingested, not the day the message was sent.
	Day string

	// Outcome classifies what the ingestion pipeline did with one message.
	Outcome string

	Money struct {
		Cents int64
	}

	// SpendRecord is one accepted spend message, keyed by
	// (OriginID, MessageID) for deduplication.
	SpendRecord struct {
		OriginID  int64
		MessageID int64
		Day       Day
		Cluster   string
		Amount    Money
	}

	// StoredSpend is a SpendRecord as persisted, with storage bookkeeping.
	StoredSpend struct {
		ID int64
		SpendRecord
		CreatedAt    time.Time
		MirrorStatus string
	}
)

const (
	OutcomeStored      Outcome = "stored"
	OutcomeDuplicate   Outcome = "duplicate"
	OutcomeWrongOrigin Outcome = "wrong_origin"
	OutcomeEmptyText   Outcome = "empty_text"
	OutcomeNoCluster   Outcome = "no_cluster"
	OutcomeNoAmount    Outcome = "no_amount"
	OutcomeNonPositive Outcome = "non_positive"
)

// Mirror statuses for StoredSpend.MirrorStatus.
const (
	MirrorPending = "pending"
	MirrorSynced  = "synced"
	MirrorError   = "error"
)

var (
	ErrNoAmount      = errors.New("no amount found")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrEmptyCluster  = errors.New("empty cluster")
	ErrInvalidDay    = errors.New("invalid day")
	ErrNotFound      = errors.New("spend not found")
)

// NewDay buckets an instant into its calendar date in loc.
func NewDay(t time.Time, loc *time.Location) Day {
	return Day(t.In(loc).Format(dayLayout))
}

// ParseDay validates a YYYY-MM-DD string supplied by an operator.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(dayLayout, strings.TrimSpace(s))
	if err != nil {
		return "", ErrInvalidDay
	}
	return Day(t.Format(dayLayout)), nil
}

func (d Day) String() string {
	return string(d)
}

// Prev returns the previous calendar date.
func (d Day) Prev() Day {
	t, err := time.Parse(dayLayout, string(d))
	if err != nil {
		return d
	}
	return Day(t.AddDate(0, 0, -1).Format(dayLayout))
}

func (d Day) Validate() error {
	if _, err := time.Parse(dayLayout, string(d)); err != nil {
		return ErrInvalidDay
	}
	return nil
}

func (o Outcome) String() string {
	return string(o)
}

// Filtered reports whether the message was dropped without touching storage.
func (o Outcome) Filtered() bool {
	return o != OutcomeStored && o != OutcomeDuplicate
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (r SpendRecord) Validate() error {
	if r.OriginID == 0 {
		return errors.New("origin id cannot be zero")
	}
	if r.MessageID == 0 {
		return errors.New("message id cannot be zero")
	}
	if err := r.Day.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(r.Cluster) == "" {
		return ErrEmptyCluster
	}
	return r.Amount.Validate()
}
