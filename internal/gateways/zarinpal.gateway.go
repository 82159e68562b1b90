package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nimasrn/drgame-ledger/pkg/logger"
	"github.com/pkg/errors"
)

const (
	zarinpalOK       = 100
	zarinpalVerified = 101
)

type zarinpalRequest struct {
	MerchantID  string            `json:"merchant_id"`
	Amount      int64             `json:"amount"`
	CallbackURL string            `json:"callback_url"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type zarinpalVerifyRequest struct {
	MerchantID string `json:"merchant_id"`
	Amount     int64  `json:"amount"`
	Authority  string `json:"authority"`
}

type zarinpalData struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Authority string `json:"authority"`
	Fee       int64  `json:"fee"`
	RefID     int64  `json:"ref_id"`
	CardPan   string `json:"card_pan"`
}

// zarinpalResponse: data is an empty array on failure and errors an empty array on success.
type zarinpalResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors json.RawMessage `json:"errors"`
}

func (r zarinpalResponse) decode() (zarinpalData, error) {
	var d zarinpalData
	if len(r.Data) > 0 && r.Data[0] == '{' {
		if err := json.Unmarshal(r.Data, &d); err != nil {
			return d, errors.Wrap(err, "decode data")
		}
	}
	if d.Code == zarinpalOK || d.Code == zarinpalVerified {
		return d, nil
	}
	var e struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if len(r.Errors) > 0 && r.Errors[0] == '{' {
		_ = json.Unmarshal(r.Errors, &e)
	}
	if e.Code == 0 {
		e.Code, e.Message = d.Code, d.Message
	}
	return d, errors.Wrapf(ErrRejected, "code %d: %s", e.Code, e.Message)
}

// ZarinpalClient talks to the Zarinpal v4 REST API.
type ZarinpalClient struct {
	cfg Config
	t   *transport
}

func NewZarinpalClient(cfg Config) *ZarinpalClient {
	cfg = cfg.withDefaults()
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	return &ZarinpalClient{cfg: cfg, t: newTransport("zarinpal", cfg)}
}

func (z *ZarinpalClient) Name() string { return "zarinpal" }

func (z *ZarinpalClient) Stats() Snapshot { return z.t.snapshot() }

func (z *ZarinpalClient) RequestPayment(ctx context.Context, req PaymentRequest) (*PaymentSession, error) {
	body := zarinpalRequest{
		MerchantID:  z.cfg.MerchantID,
		Amount:      req.Amount,
		CallbackURL: z.cfg.CallbackURL,
		Description: req.Description,
	}
	if req.Mobile != "" {
		body.Metadata = map[string]string{"mobile": req.Mobile}
	}

	var resp zarinpalResponse
	if err := z.t.postJSON(ctx, "request", z.cfg.BaseURL+"/payment/request.json", nil, body, &resp); err != nil {
		return nil, err
	}
	data, err := resp.decode()
	if err != nil {
		return nil, err
	}
	if data.Authority == "" {
		return nil, errors.Wrap(ErrRejected, "empty authority")
	}

	logger.Info("zarinpal payment requested", "authority", data.Authority, "amount", req.Amount, "reference", req.Reference)
	return &PaymentSession{
		Authority:  data.Authority,
		PaymentURL: z.cfg.StartPayURL + data.Authority,
		Metadata:   map[string]any{"code": data.Code, "fee": data.Fee},
	}, nil
}

func (z *ZarinpalClient) VerifyPayment(ctx context.Context, authority string, amount int64) (*Verification, error) {
	body := zarinpalVerifyRequest{MerchantID: z.cfg.MerchantID, Amount: amount, Authority: authority}

	var resp zarinpalResponse
	if err := z.t.postJSON(ctx, "verify", z.cfg.BaseURL+"/payment/verify.json", nil, body, &resp); err != nil {
		return nil, err
	}
	data, err := resp.decode()
	if err != nil {
		return nil, err
	}
	return &Verification{
		RefID:    fmt.Sprint(data.RefID),
		Metadata: map[string]any{"code": data.Code, "card_pan": data.CardPan},
	}, nil
}
