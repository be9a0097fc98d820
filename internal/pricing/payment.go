package pricing

import (
	"time"

	"github.com/boddenberg/orcamento-engine-go/internal/domain"

	"github.com/shopspring/decimal"
)

// ComputePaymentPlan turns a principal into a payment plan following tpl.
//
// downPaymentOverride, when non-nil, replaces the template percentage.
// interestRatePercent is a per-period rate; nil or <= 0 means no interest.
// A missing or non-positive installment count degrades to a single lump
// payment of the financed amount. The schedule is additive: the sum of its
// entries may differ from TotalWithInterest by rounding residue.
func ComputePaymentPlan(tpl domain.PaymentOptionTemplate, principal decimal.Decimal, downPaymentOverride, interestRatePercent *decimal.Decimal, today time.Time) domain.PaymentPlan {
	downPayment := decimal.Zero
	switch {
	case downPaymentOverride != nil:
		downPayment = *downPaymentOverride
	case tpl.DownPaymentPercent != nil:
		downPayment = principal.Mul(*tpl.DownPaymentPercent).Div(hundred)
	}
	downPayment = round2(downPayment)
	financed := principal.Sub(downPayment)

	n := 0
	if tpl.InstallmentCount != nil && *tpl.InstallmentCount > 0 {
		n = *tpl.InstallmentCount
	}
	days := 0
	if tpl.DaysBetweenInstallments != nil && *tpl.DaysBetweenInstallments > 0 {
		days = *tpl.DaysBetweenInstallments
	}
	periods := n
	if periods < 1 {
		periods = 1
	}

	hasInterest := interestRatePercent != nil && interestRatePercent.IsPositive()

	var installmentValue, total decimal.Decimal
	switch {
	case hasInterest && n > 1:
		r := interestRatePercent.Div(hundred)
		growth := compound(one.Add(r), n)
		factor := r.Mul(growth).Div(growth.Sub(one))
		installmentValue = round2(financed.Mul(factor))
		total = installmentValue.Mul(decimal.NewFromInt(int64(n))).Add(downPayment)
	case hasInterest && days > 0:
		// single payment with term: compounded over the period count
		growth := compound(one.Add(interestRatePercent.Div(hundred)), periods)
		installmentValue = round2(financed.Mul(growth))
		total = round2(principal.Mul(growth))
	default:
		installmentValue = round2(financed.Div(decimal.NewFromInt(int64(periods))))
		total = round2(principal)
	}

	return domain.PaymentPlan{
		DownPayment:       downPayment,
		InstallmentCount:  n,
		InstallmentValue:  installmentValue,
		TotalWithInterest: total,
		Schedule:          buildSchedule(downPayment, financed, installmentValue, n, days, today),
	}
}

func buildSchedule(downPayment, financed, installmentValue decimal.Decimal, n, days int, today time.Time) []domain.ScheduleEntry {
	start := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	schedule := make([]domain.ScheduleEntry, 0, n+1)

	if downPayment.IsPositive() {
		schedule = append(schedule, domain.ScheduleEntry{
			Kind:    domain.ScheduleDownPayment,
			Number:  0,
			Amount:  downPayment,
			DueDate: start,
		})
	}

	if n == 0 {
		if financed.IsPositive() {
			schedule = append(schedule, domain.ScheduleEntry{
				Kind:    domain.ScheduleLumpSum,
				Number:  1,
				Amount:  installmentValue,
				DueDate: start.AddDate(0, 0, days),
			})
		}
		return schedule
	}

	for i := 1; i <= n; i++ {
		schedule = append(schedule, domain.ScheduleEntry{
			Kind:    domain.ScheduleInstallment,
			Number:  i,
			Amount:  installmentValue,
			DueDate: start.AddDate(0, 0, days*i),
		})
	}
	return schedule
}
