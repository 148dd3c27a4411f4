package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// FulfillmentClient отправляет заявки во внешний SMM API.
// Успех определяется наличием поля order в ответе; повторных попыток нет.
type FulfillmentClient struct {
	BaseURL string
	Key     string
	HTTP    *http.Client
}

func NewFulfillmentClient(baseURL, key string) *FulfillmentClient {
	return &FulfillmentClient{
		BaseURL: baseURL,
		Key:     key,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

type fulfillmentResponse struct {
	Order json.Number `json:"order"`
	Error string      `json:"error"`
}

// Submit отправляет заявку {key, action=add, service, link, quantity}.
// requestID — наш корреляционный id, генерируется всегда, даже при ошибке,
// чтобы заявку можно было связать с записью Order в БД.
func (c *FulfillmentClient) Submit(serviceID int, link string, quantity int) (orderID, requestID string, err error) {
	requestID = uuid.NewString()

	params := url.Values{}
	params.Set("key", c.Key)
	params.Set("action", "add")
	params.Set("service", strconv.Itoa(serviceID))
	params.Set("link", link)
	params.Set("quantity", strconv.Itoa(quantity))

	resp, err := c.HTTP.Get(c.BaseURL + "?" + params.Encode())
	if err != nil {
		return "", requestID, err
	}
	defer resp.Body.Close()

	var fr fulfillmentResponse
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		return "", requestID, err
	}
	if fr.Order == "" {
		if fr.Error != "" {
			return "", requestID, errors.New(fr.Error)
		}
		return "", requestID, fmt.Errorf("fulfillment API: no order in response (status %d)", resp.StatusCode)
	}
	return fr.Order.String(), requestID, nil
}
