package repository

import (
	"github.com/fedbridge/bridge-node/db"
	"github.com/fedbridge/bridge-node/entity"
	"github.com/fedbridge/bridge-node/repository/postgres"
)

type Repo struct {
	Counters            entity.CountersRepo
	ActiveRequest       entity.ActiveRequestRepo
	RequestQueue        entity.RequestQueueRepo
	SettledTransactions entity.SettledTransactionsRepo
	ProcessedEvents     entity.ProcessedEventsRepo
	ActiveRange         entity.ActiveRangeRepo
	BlockVotes          entity.BlockVotesRepo
	PartitionVotes      entity.PartitionVotesRepo
	AdditionalEvents    entity.AdditionalEventsRepo
	UncheckedEvents     entity.UncheckedEventsRepo
	EventChecks         entity.EventChecksRepo
	Challenges          entity.ChallengesRepo
	VotingSessions      entity.VotingSessionsRepo
	Slot                entity.SlotRepo
	Offences            entity.OffencesRepo
}

func NewRepo(db *db.DB) *Repo {
	return &Repo{
		Counters:            postgres.NewCountersRepo("counters", db),
		ActiveRequest:       postgres.NewActiveRequestRepo("active_request", db),
		RequestQueue:        postgres.NewRequestQueueRepo("request_queue", db),
		SettledTransactions: postgres.NewSettledTransactionsRepo("settled_transactions", db),
		ProcessedEvents:     postgres.NewProcessedEventsRepo("processed_events", db),
		ActiveRange:         postgres.NewActiveRangeRepo("active_range", db),
		BlockVotes:          postgres.NewBlockVotesRepo("block_votes", db),
		PartitionVotes:      postgres.NewPartitionVotesRepo("partition_votes", db),
		AdditionalEvents:    postgres.NewAdditionalEventsRepo("additional_events", db),
		UncheckedEvents:     postgres.NewUncheckedEventsRepo("unchecked_events", db),
		EventChecks:         postgres.NewEventChecksRepo("event_checks", db),
		Challenges:          postgres.NewChallengesRepo("challenges", db),
		VotingSessions:      postgres.NewVotingSessionsRepo("voting_sessions", db),
		Slot:                postgres.NewSlotRepo("slot", db),
		Offences:            postgres.NewOffencesRepo("offences", db),
	}
}
