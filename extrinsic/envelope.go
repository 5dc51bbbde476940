package extrinsic

import (
	"encoding/json"
	"fmt"
)

// Envelope is the tagged wire form of a Call.
type Envelope struct {
	Kind string          `json:"kind"`
	Call json.RawMessage `json:"call"`
}

func Encode(call Call) ([]byte, error) {
	payload, err := json.Marshal(call)
	if err != nil {
		return nil, fmt.Errorf("can't encode call: %w", err)
	}
	return json.Marshal(&Envelope{Kind: call.Kind(), Call: payload})
}

// Decode parses a tagged envelope into its concrete command. Unknown kinds
// are rejected: the command set is closed.
func Decode(blob []byte) (Call, error) {
	var envelope Envelope
	if err := json.Unmarshal(blob, &envelope); err != nil {
		return nil, fmt.Errorf("can't decode envelope: %w", err)
	}
	call, err := emptyCall(envelope.Kind)
	if err != nil {
		return nil, err
	}
	if err = json.Unmarshal(envelope.Call, call); err != nil {
		return nil, fmt.Errorf("can't decode %s call: %w", envelope.Kind, err)
	}
	return call, nil
}

func emptyCall(kind string) (Call, error) {
	switch kind {
	case KindAddConfirmation:
		return &AddConfirmation{}, nil
	case KindAddEthTxHash:
		return &AddEthTxHash{}, nil
	case KindAddCorroboration:
		return &AddCorroboration{}, nil
	case KindSubmitLatestEthereumBlock:
		return &SubmitLatestEthereumBlock{}, nil
	case KindSubmitEthereumEvents:
		return &SubmitEthereumEvents{}, nil
	case KindSubmitCheckEventResult:
		return &SubmitCheckEventResult{}, nil
	case KindChallengeEvent:
		return &ChallengeEvent{}, nil
	case KindProcessEvent:
		return &ProcessEvent{}, nil
	case KindApproveRoot:
		return &ApproveRoot{}, nil
	case KindRejectRoot:
		return &RejectRoot{}, nil
	case KindEndVotingPeriod:
		return &EndVotingPeriod{}, nil
	case KindAdvanceSlot:
		return &AdvanceSlot{}, nil
	}
	return nil, fmt.Errorf("unknown call kind %q", kind)
}
