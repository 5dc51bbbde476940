package memory

import (
	"encoding/json"
	"fmt"

	"github.com/fedbridge/bridge-node/repository"
)

// NewRepo builds a fully in-memory Repo. Used by tests and by deployments
// that run without Postgres.
func NewRepo() *repository.Repo {
	return &repository.Repo{
		Counters:            NewCountersRepo(),
		ActiveRequest:       NewActiveRequestRepo(),
		RequestQueue:        NewRequestQueueRepo(),
		SettledTransactions: NewSettledTransactionsRepo(),
		ProcessedEvents:     NewProcessedEventsRepo(),
		ActiveRange:         NewActiveRangeRepo(),
		BlockVotes:          NewBlockVotesRepo(),
		PartitionVotes:      NewPartitionVotesRepo(),
		AdditionalEvents:    NewAdditionalEventsRepo(),
		UncheckedEvents:     NewUncheckedEventsRepo(),
		EventChecks:         NewEventChecksRepo(),
		Challenges:          NewChallengesRepo(),
		VotingSessions:      NewVotingSessionsRepo(),
		Slot:                NewSlotRepo(),
		Offences:            NewOffencesRepo(),
	}
}

// clone deep-copies src into dst so callers never alias stored state.
func clone(src, dst interface{}) error {
	blob, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("can't encode value: %w", err)
	}
	if err = json.Unmarshal(blob, dst); err != nil {
		return fmt.Errorf("can't decode value: %w", err)
	}
	return nil
}
