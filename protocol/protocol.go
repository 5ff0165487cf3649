// Package protocol defines the messages exchanged between creature processes,
// the generation coordinator and host observers, and their JSON wire form.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Type identifies a message on the wire.
type Type string

const (
	// Creature -> coordinator
	TypeStatus   Type = "status"
	TypeFinished Type = "finished"

	// Coordinator -> creature
	TypeEatConfirm    Type = "eat_confirm"
	TypeTarget        Type = "target"
	TypeNoTarget      Type = "no_target"
	TypeGenerationEnd Type = "generation_end"

	// Host -> coordinator
	TypeKill Type = "kill"

	// Coordinator -> host
	TypeGenerationStart Type = "generation_start"
	TypeCreatureRemoved Type = "creature_removed"
	TypeCreatureStatus  Type = "creature_status"
	TypeFoodConsumed    Type = "food_consumed"
)

// Removal reasons carried by CreatureRemoved.
const (
	ReasonKilled        = "killed"
	ReasonGenerationEnd = "generation_end"
	ReasonFinished      = "finished"
)

var (
	// ErrUnknownType is returned by Decode for a type it does not know.
	ErrUnknownType = errors.New("protocol: unknown message type")
	// ErrMalformed is returned by Decode for payloads that are not a JSON object.
	ErrMalformed = errors.New("protocol: malformed payload")
)

// Message is implemented by every wire message.
type Message interface {
	MessageType() Type
}

// Inbound is a raw payload addressed to the coordinator.
// From names the sender and is used when the payload carries no id.
type Inbound struct {
	From    string
	Payload []byte
}

// Point is a position in world units.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Status is the periodic report of a creature's local view.
type Status struct {
	ID         string  `json:"id"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Energy     float64 `json:"energy"`
	Speed      float64 `json:"speed"`
	Size       float64 `json:"size"`
	Sense      float64 `json:"sense"`
	FoodsEaten int     `json:"foods_eaten"`
	Kills      int     `json:"kills"`
}

// Finished is a creature's final report before its process exits.
type Finished struct {
	ID         string  `json:"id"`
	FoodsEaten int     `json:"foods_eaten"`
	Energy     float64 `json:"energy"`
	Size       float64 `json:"size"`
	Sense      float64 `json:"sense"`
}

// EatConfirm credits a creature with a meal. Prey is set for kills.
type EatConfirm struct {
	ID         string   `json:"id"`
	EnergyGain *float64 `json:"energy_gain,omitempty"`
	Prey       string   `json:"prey,omitempty"`
}

// Target points a creature at the nearest remaining food.
type Target struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NoTarget tells a creature no food remains.
type NoTarget struct{}

// GenerationEnd asks a creature to report Finished and stop.
type GenerationEnd struct{}

// Kill asks the coordinator to remove a creature.
type Kill struct {
	TargetID string `json:"target_id"`
}

// GenerationStart announces a freshly spawned generation.
type GenerationStart struct {
	Generation int     `json:"generation"`
	Foods      []Point `json:"foods"`
}

// CreatureRemoved announces that a creature left the world.
type CreatureRemoved struct {
	ID       string `json:"id"`
	Reason   string `json:"reason"`
	KilledBy string `json:"killed_by,omitempty"`
}

// CreatureStatus is the committed coordinator view of a creature.
type CreatureStatus struct {
	Generation int     `json:"generation"`
	ID         string  `json:"id"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Energy     float64 `json:"energy"`
	Speed      float64 `json:"speed"`
	Size       float64 `json:"size"`
	Sense      float64 `json:"sense"`
	FoodsEaten int     `json:"foods_eaten"`
	Kills      int     `json:"kills"`
	Alive      bool    `json:"alive"`
}

// FoodConsumed announces that a food item was removed.
type FoodConsumed struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (Status) MessageType() Type          { return TypeStatus }
func (Finished) MessageType() Type        { return TypeFinished }
func (EatConfirm) MessageType() Type      { return TypeEatConfirm }
func (Target) MessageType() Type          { return TypeTarget }
func (NoTarget) MessageType() Type        { return TypeNoTarget }
func (GenerationEnd) MessageType() Type   { return TypeGenerationEnd }
func (Kill) MessageType() Type            { return TypeKill }
func (GenerationStart) MessageType() Type { return TypeGenerationStart }
func (CreatureRemoved) MessageType() Type { return TypeCreatureRemoved }
func (CreatureStatus) MessageType() Type  { return TypeCreatureStatus }
func (FoodConsumed) MessageType() Type    { return TypeFoodConsumed }

// Encode serializes m as a flat JSON object with a "type" field.
func Encode(m Message) ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.MessageType(), err)
	}
	typ, err := json.Marshal(m.MessageType())
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.MessageType(), err)
	}

	// body is always a JSON object: splice the type in as its first member
	out := make([]byte, 0, len(body)+len(typ)+9)
	out = append(out, `{"type":`...)
	out = append(out, typ...)
	if len(body) > 2 {
		out = append(out, ',')
	}
	out = append(out, body[1:]...)
	return out, nil
}

// MustEncode is Encode for messages that cannot fail to marshal.
func MustEncode(m Message) []byte {
	b, err := Encode(m)
	if err != nil {
		panic(err)
	}
	return b
}

// Decode parses a payload into its concrete message value.
func Decode(payload []byte) (Message, error) {
	var head struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(payload, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch head.Type {
	case TypeStatus:
		return decodeAs[Status](payload)
	case TypeFinished:
		return decodeAs[Finished](payload)
	case TypeEatConfirm:
		return decodeAs[EatConfirm](payload)
	case TypeTarget:
		return decodeAs[Target](payload)
	case TypeNoTarget:
		return NoTarget{}, nil
	case TypeGenerationEnd:
		return GenerationEnd{}, nil
	case TypeKill:
		return decodeAs[Kill](payload)
	case TypeGenerationStart:
		return decodeAs[GenerationStart](payload)
	case TypeCreatureRemoved:
		return decodeAs[CreatureRemoved](payload)
	case TypeCreatureStatus:
		return decodeAs[CreatureStatus](payload)
	case TypeFoodConsumed:
		return decodeAs[FoodConsumed](payload)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, head.Type)
	}
}

func decodeAs[T Message](payload []byte) (Message, error) {
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return v, nil
}

// Gain returns a pointer for EatConfirm.EnergyGain.
func Gain(v float64) *float64 {
	return &v
}
