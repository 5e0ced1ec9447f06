package chatclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/devhivehq/devhive-backend/internal/models"
)

// RESTStore talks to the conversations API over HTTP. It implements Store.
type RESTStore struct {
	baseURL   string
	authToken string
	client    *http.Client
}

func NewRESTStore(baseURL, authToken string) *RESTStore {
	return &RESTStore{
		baseURL:   baseURL,
		authToken: authToken,
		client:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *RESTStore) Send(conversationID uint, clientID, content string, messageType models.MessageType, metadata models.MessageMetadata, parentID *uint) (*models.Message, error) {
	body := map[string]any{
		"conversation_id": conversationID,
		"client_id":       clientID,
		"content":         content,
		"message_type":    messageType,
		"metadata":        metadata,
	}
	if parentID != nil {
		body["parent_id"] = *parentID
	}
	var msg models.Message
	if err := s.do(http.MethodPost, "/api/messages", body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *RESTStore) Edit(messageID uint, content string) (*models.Message, error) {
	var msg models.Message
	path := fmt.Sprintf("/api/messages/%d", messageID)
	if err := s.do(http.MethodPut, path, map[string]any{"content": content}, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *RESTStore) Delete(messageID uint, mode string) error {
	path := fmt.Sprintf("/api/messages/%d?mode=%s", messageID, mode)
	return s.do(http.MethodDelete, path, nil, nil)
}

func (s *RESTStore) MarkRead(conversationID, uptoMessageID uint) error {
	path := fmt.Sprintf("/api/conversations/%d/read", conversationID)
	return s.do(http.MethodPost, path, map[string]any{"upto_message_id": uptoMessageID}, nil)
}

func (s *RESTStore) do(method, path string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequest(method, s.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.authToken)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error == "" {
			apiErr.Error = resp.Status
		}
		return fmt.Errorf("%s %s: %s", method, path, apiErr.Error)
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
