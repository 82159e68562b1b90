package services

import (
	"context"

	"github.com/nimasrn/drgame-ledger/internal/model"
)

// ReportService computes read-only rollups over the balance holders.
type ReportService struct {
	methods   PaymentMethodRepository
	customers CustomerRepository
	employees EmployeeRepository
	repairmen RepairmanRepository
	txns      TransactionRepository
}

func NewReportService(methods PaymentMethodRepository, customers CustomerRepository, employees EmployeeRepository, repairmen RepairmanRepository, txns TransactionRepository) *ReportService {
	return &ReportService{
		methods:   methods,
		customers: customers,
		employees: employees,
		repairmen: repairmen,
		txns:      txns,
	}
}

func (s *ReportService) FinanceSummary(ctx context.Context) (*model.FinanceSummary, error) {
	pmTotal, err := s.methods.Total(ctx)
	if err != nil {
		return nil, err
	}
	customers, err := s.customers.Totals(ctx)
	if err != nil {
		return nil, err
	}
	employees, err := s.employees.Totals(ctx)
	if err != nil {
		return nil, err
	}
	repairmen, err := s.repairmen.Totals(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := s.txns.CountByStatus(ctx, model.TransactionPending)
	if err != nil {
		return nil, err
	}
	waiting, err := s.txns.CountByStatus(ctx, model.TransactionWaiting)
	if err != nil {
		return nil, err
	}

	return &model.FinanceSummary{
		PaymentMethodTotal: pmTotal,
		CustomerCredit:     customers.Credit,
		CustomerDebt:       customers.Debt,
		EmployeeCredit:     employees.Credit,
		EmployeeDebt:       employees.Debt,
		RepairmanCredit:    repairmen.Credit,
		RepairmanDebt:      repairmen.Debt,
		NetBalance: pmTotal - employees.Credit - customers.Credit + customers.Debt + employees.Debt -
			repairmen.Credit + repairmen.Debt,
		PendingCount: pending,
		WaitingCount: waiting,
	}, nil
}
