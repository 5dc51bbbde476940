package events

import (
	"bytes"
	"sort"

	"github.com/fedbridge/bridge-node/entity"
)

// MaxEventsPerPartition bounds a single vote payload.
const MaxEventsPerPartition = 32

// BuildPartitions splits the events discovered within one range into
// fixed-size partitions in a canonical order, so every honest node derives
// byte-identical partitions (and therefore identical partition ids) from the
// same set of logs. A range with no events still yields one empty partition,
// otherwise the range could never complete.
func BuildPartitions(r entity.EthBlockRange, discovered []entity.DiscoveredEvent) []*entity.EventsPartition {
	sorted := make([]entity.DiscoveredEvent, len(discovered))
	copy(sorted, discovered)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Block != sorted[j].Block {
			return sorted[i].Block < sorted[j].Block
		}
		return bytes.Compare(sorted[i].Event.TxHash.Bytes(), sorted[j].Event.TxHash.Bytes()) < 0
	})

	count := (len(sorted) + MaxEventsPerPartition - 1) / MaxEventsPerPartition
	if count == 0 {
		count = 1
	}
	partitions := make([]*entity.EventsPartition, 0, count)
	for i := 0; i < count; i++ {
		lo := i * MaxEventsPerPartition
		hi := lo + MaxEventsPerPartition
		if hi > len(sorted) {
			hi = len(sorted)
		}
		partitions = append(partitions, &entity.EventsPartition{
			Range:     r,
			Partition: uint16(i),
			IsLast:    i == count-1,
			Events:    sorted[lo:hi],
		})
	}
	return partitions
}
