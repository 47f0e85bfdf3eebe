package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"oxyrun/model"
)

// ErrUnknownType 信封类型无法识别
var ErrUnknownType = errors.New("protocol: unknown message type")

func Encode(t string, payload any) ([]byte, error) {
	if t == "" {
		return nil, fmt.Errorf("trying to encode envelope with empty type")
	}
	if payload == nil {
		return nil, fmt.Errorf("trying to encode nil payload for %q", t)
	}
	pb, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{T: t, P: pb})
}

func DecodeEnvelope(b []byte) (Envelope, error) {
	if len(b) == 0 {
		return Envelope{}, fmt.Errorf("decode envelope: empty input")
	}
	var e Envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return Envelope{}, err
	}
	return e, nil
}

func DecodePayload[T any](env Envelope) (T, error) {
	var out T
	if len(env.P) == 0 {
		return out, fmt.Errorf("empty payload for type %q", env.T)
	}
	err := json.Unmarshal(env.P, &out)
	return out, err
}

// EncodeEvent 事件编码为信封
func EncodeEvent(e model.Event) ([]byte, error) {
	switch e := e.(type) {
	case model.PlayerJoined:
		return Encode(EvPlayerJoined, e.Player)
	case model.PlayerUpdated:
		return Encode(EvPlayerUpdated, e.Player)
	case model.PlayerLeft:
		return Encode(EvPlayerLeft, leftPayload{ID: uint64(e.ID)})
	case model.PlayerDied:
		return Encode(EvPlayerDied, e.Player)
	default:
		return nil, fmt.Errorf("encode event %T: %w", e, ErrUnknownType)
	}
}

func DecodeEvent(b []byte) (model.Event, error) {
	env, err := DecodeEnvelope(b)
	if err != nil {
		return nil, err
	}
	return decodeEvent(env)
}

func decodeEvent(env Envelope) (model.Event, error) {
	switch env.T {
	case EvPlayerJoined:
		p, err := DecodePayload[model.Player](env)
		return model.PlayerJoined{Player: p}, err
	case EvPlayerUpdated:
		p, err := DecodePayload[model.Player](env)
		return model.PlayerUpdated{Player: p}, err
	case EvPlayerLeft:
		l, err := DecodePayload[leftPayload](env)
		return model.PlayerLeft{ID: model.ID(l.ID)}, err
	case EvPlayerDied:
		p, err := DecodePayload[model.Player](env)
		return model.PlayerDied{Player: p}, err
	default:
		return nil, fmt.Errorf("event %q: %w", env.T, ErrUnknownType)
	}
}

// EncodeClientMessage 上行：{"t":"event","p":<事件信封>}
func EncodeClientMessage(msg model.ClientMessage) ([]byte, error) {
	eb, err := EncodeEvent(msg.Event)
	if err != nil {
		return nil, err
	}
	return Encode(MsgEvent, json.RawMessage(eb))
}

func DecodeClientMessage(b []byte) (model.ClientMessage, error) {
	env, err := DecodeEnvelope(b)
	if err != nil {
		return model.ClientMessage{}, err
	}
	if env.T != MsgEvent {
		return model.ClientMessage{}, fmt.Errorf("client message %q: %w", env.T, ErrUnknownType)
	}
	inner, err := DecodeEnvelope(env.P)
	if err != nil {
		return model.ClientMessage{}, err
	}
	e, err := decodeEvent(inner)
	if err != nil {
		return model.ClientMessage{}, err
	}
	return model.ClientMessage{Event: e}, nil
}

// EncodeServerMessage 下行：update 为事件信封数组，welcome 为快照
func EncodeServerMessage(msg model.ServerMessage) ([]byte, error) {
	switch msg := msg.(type) {
	case model.Update:
		list := make([]json.RawMessage, 0, len(msg.Events))
		for _, e := range msg.Events {
			eb, err := EncodeEvent(e)
			if err != nil {
				return nil, err
			}
			list = append(list, eb)
		}
		return Encode(MsgUpdate, list)
	case model.WelcomeMessage:
		mb, err := json.Marshal(msg.Model)
		if err != nil {
			return nil, err
		}
		return Encode(MsgWelcome, welcomePayload{PlayerID: uint64(msg.PlayerID), Model: mb})
	default:
		return nil, fmt.Errorf("encode server message %T: %w", msg, ErrUnknownType)
	}
}

func DecodeServerMessage(b []byte) (model.ServerMessage, error) {
	env, err := DecodeEnvelope(b)
	if err != nil {
		return nil, err
	}
	switch env.T {
	case MsgUpdate:
		raw, err := DecodePayload[[]json.RawMessage](env)
		if err != nil {
			return nil, err
		}
		events := make([]model.Event, 0, len(raw))
		for _, r := range raw {
			e, err := DecodeEvent(r)
			if err != nil {
				return nil, err
			}
			events = append(events, e)
		}
		return model.Update{Events: events}, nil
	case MsgWelcome:
		w, err := DecodePayload[welcomePayload](env)
		if err != nil {
			return nil, err
		}
		m := model.New()
		if err := json.Unmarshal(w.Model, m); err != nil {
			return nil, fmt.Errorf("decode welcome model: %w", err)
		}
		return model.WelcomeMessage{PlayerID: model.ID(w.PlayerID), Model: m}, nil
	default:
		return nil, fmt.Errorf("server message %q: %w", env.T, ErrUnknownType)
	}
}
