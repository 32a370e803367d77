package services

import (
	"context"
	"errors"

	"finwise/internal/advice"
	"finwise/internal/core"
)

// ErrIncomeRequired is returned when a savings suggestion is asked for
// without a positive income.
var ErrIncomeRequired = errors.New("monthly income must be greater than zero")

// Adviser is the subset of the advice gateway used here.
type Adviser interface {
	GetAdvice(ctx context.Context, prompt string) advice.Result
}

// AdviceService turns user input into prompts for the advice gateway.
type AdviceService struct {
	gateway Adviser
}

func NewAdviceService(gateway Adviser) *AdviceService {
	return &AdviceService{gateway: gateway}
}

// Savings suggests saving strategies for the report's total spending.
func (s *AdviceService) Savings(ctx context.Context, report core.Report, income core.Money) (advice.Result, error) {
	if income.Cents <= 0 {
		return advice.Result{}, ErrIncomeRequired
	}
	return s.gateway.GetAdvice(ctx, advice.SavingsPrompt(income, report.Total)), nil
}

// Investment suggests investment strategies for a risk profile and goals.
func (s *AdviceService) Investment(ctx context.Context, income, savings core.Money, risk advice.Risk, goals string) (advice.Result, error) {
	if err := income.Validate(); err != nil {
		return advice.Result{}, err
	}
	if err := savings.Validate(); err != nil {
		return advice.Result{}, err
	}
	risk, err := advice.ParseRisk(string(risk))
	if err != nil {
		return advice.Result{}, err
	}
	return s.gateway.GetAdvice(ctx, advice.InvestmentPrompt(income, savings, risk, CleanDescription(goals))), nil
}

// Chat answers a free-form financial question.
func (s *AdviceService) Chat(ctx context.Context, question string) (advice.Result, error) {
	prompt, err := advice.ChatPrompt(question)
	if err != nil {
		return advice.Result{}, err
	}
	return s.gateway.GetAdvice(ctx, prompt), nil
}
