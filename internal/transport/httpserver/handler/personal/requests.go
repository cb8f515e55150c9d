package personal

import (
	"bytes"
	"encoding/json"
	"strconv"

	"family-ledger-go/internal/domain/ledger"
	"family-ledger-go/internal/domain/lifecycle"
)

type createRequest struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	AmountMin       *float64 `json:"amount_min"`
	AmountAvg       *float64 `json:"amount_avg"`
	AmountMax       *float64 `json:"amount_max"`
	RequestedAmount *float64 `json:"requested_amount"`
	StartDate       *string  `json:"start_date"`
	EndDate         *string  `json:"end_date"`
}

func (req createRequest) input() (ledger.CreatePersonalExpenseInput, error) {
	start, err := parseOptionalDate(req.StartDate, "start_date")
	if err != nil {
		return ledger.CreatePersonalExpenseInput{}, err
	}
	end, err := parseOptionalDate(req.EndDate, "end_date")
	if err != nil {
		return ledger.CreatePersonalExpenseInput{}, err
	}
	return ledger.CreatePersonalExpenseInput{
		Title:           req.Title,
		Description:     req.Description,
		AmountMin:       req.AmountMin,
		AmountAvg:       req.AmountAvg,
		AmountMax:       req.AmountMax,
		RequestedAmount: req.RequestedAmount,
		StartDate:       start,
		EndDate:         end,
	}, nil
}

type updateRequest struct {
	Title           *string  `json:"title"`
	Description     *string  `json:"description"`
	AmountMin       *float64 `json:"amount_min"`
	AmountAvg       *float64 `json:"amount_avg"`
	AmountMax       *float64 `json:"amount_max"`
	RequestedAmount *float64 `json:"requested_amount"`
	StartDate       *string  `json:"start_date"`
	EndDate         *string  `json:"end_date"`
}

func (req updateRequest) patch() (ledger.PersonalExpensePatch, error) {
	start, err := parseOptionalDate(req.StartDate, "start_date")
	if err != nil {
		return ledger.PersonalExpensePatch{}, err
	}
	end, err := parseOptionalDate(req.EndDate, "end_date")
	if err != nil {
		return ledger.PersonalExpensePatch{}, err
	}
	return ledger.PersonalExpensePatch{
		Title:           req.Title,
		Description:     req.Description,
		AmountMin:       req.AmountMin,
		AmountAvg:       req.AmountAvg,
		AmountMax:       req.AmountMax,
		RequestedAmount: req.RequestedAmount,
		StartDate:       start,
		EndDate:         end,
	}, nil
}

type confirmRequest struct {
	Confirm bool `json:"confirm"`
}

type decideRequest struct {
	Decision       ledger.Decision `json:"decision"`
	Comment        string          `json:"comment"`
	ApprovedAmount typedAmount     `json:"approved_amount"`
	Confirm        bool            `json:"confirm"`
}

func (req decideRequest) input() lifecycle.DecideInput {
	return lifecycle.DecideInput{
		Decision:       req.Decision,
		Comment:        req.Comment,
		ApprovedAmount: string(req.ApprovedAmount),
	}
}

// typedAmount keeps the approved amount as the admin typed it. Clients send
// either a string or a number; both end up as text for the controller to
// parse.
type typedAmount string

func (a *typedAmount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*a = ""
	case len(data) > 0 && data[0] == '"':
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*a = typedAmount(text)
	default:
		var number json.Number
		if err := json.Unmarshal(data, &number); err != nil {
			return err
		}
		if _, err := strconv.ParseFloat(number.String(), 64); err != nil {
			return err
		}
		*a = typedAmount(number.String())
	}
	return nil
}
