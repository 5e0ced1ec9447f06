package ws

import "encoding/json"

func Serialize(msg Message) ([]byte, error) {
	payload, err := ToJson(msg)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: msg.GetType(), Payload: payload})
}

func Deserialize(jsonBytes []byte) (Message, error) {
	var wrapper Envelope
	if err := json.Unmarshal(jsonBytes, &wrapper); err != nil {
		return nil, err
	}

	msg, err := CreateMessage(wrapper.Type, typeRegistry)
	if err != nil {
		return nil, err
	}

	if len(wrapper.Payload) > 0 {
		if err := FromJson(wrapper.Payload, msg); err != nil {
			return nil, err
		}
	}

	return msg, nil
}
