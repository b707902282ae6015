package ml

import (
	"encoding/json"
	"fmt"
)

const (
	modelTypeTree     = "decision_tree"
	modelTypeForest   = "random_forest"
	modelTypeKNN      = "knn"
	modelTypeEnsemble = "voting_ensemble"
)

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type ensemblePayload struct {
	NumClasses int        `json:"num_classes"`
	Members    []envelope `json:"members"`
}

// MarshalModel serializes any classifier from this package to JSON.
func MarshalModel(c Classifier) ([]byte, error) {
	env, err := wrap(c)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// UnmarshalModel restores a classifier serialized by MarshalModel.
func UnmarshalModel(data []byte) (Classifier, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("ml: decode model envelope: %w", err)
	}
	return unwrap(env)
}

func wrap(c Classifier) (*envelope, error) {
	switch m := c.(type) {
	case *DecisionTree:
		payload, err := json.Marshal(m)
		if err != nil {
			return nil, err
		}
		return &envelope{Type: modelTypeTree, Payload: payload}, nil
	case *RandomForest:
		payload, err := json.Marshal(m)
		if err != nil {
			return nil, err
		}
		return &envelope{Type: modelTypeForest, Payload: payload}, nil
	case *KNN:
		payload, err := json.Marshal(m)
		if err != nil {
			return nil, err
		}
		return &envelope{Type: modelTypeKNN, Payload: payload}, nil
	case *VotingEnsemble:
		members := make([]envelope, 0, len(m.Members))
		for _, member := range m.Members {
			env, err := wrap(member)
			if err != nil {
				return nil, err
			}
			members = append(members, *env)
		}
		payload, err := json.Marshal(ensemblePayload{NumClasses: m.NumClasses, Members: members})
		if err != nil {
			return nil, err
		}
		return &envelope{Type: modelTypeEnsemble, Payload: payload}, nil
	default:
		return nil, fmt.Errorf("ml: unsupported model type %T", c)
	}
}

func unwrap(env envelope) (Classifier, error) {
	switch env.Type {
	case modelTypeTree:
		model := &DecisionTree{}
		if err := json.Unmarshal(env.Payload, model); err != nil {
			return nil, err
		}
		return model, nil
	case modelTypeForest:
		model := &RandomForest{}
		if err := json.Unmarshal(env.Payload, model); err != nil {
			return nil, err
		}
		return model, nil
	case modelTypeKNN:
		model := &KNN{}
		if err := json.Unmarshal(env.Payload, model); err != nil {
			return nil, err
		}
		return model, nil
	case modelTypeEnsemble:
		var payload ensemblePayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return nil, err
		}
		ensemble := &VotingEnsemble{NumClasses: payload.NumClasses}
		for _, member := range payload.Members {
			m, err := unwrap(member)
			if err != nil {
				return nil, err
			}
			ensemble.Members = append(ensemble.Members, m)
		}
		return ensemble, nil
	default:
		return nil, fmt.Errorf("ml: unsupported model type %q", env.Type)
	}
}
