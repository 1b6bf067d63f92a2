package enums

import "fmt"

// TransactionType tags wallet_transactions rows with the cause of the movement.
type TransactionType string

const (
	TransactionDeposit             TransactionType = "deposit"
	TransactionWithdrawal          TransactionType = "withdrawal"
	TransactionBankTransfer        TransactionType = "bank_transfer"
	TransactionReferralBonus       TransactionType = "referral_bonus"
	TransactionConsultationFee     TransactionType = "consultation_fee"
	TransactionConsultationPayment TransactionType = "consultation_payment"
	TransactionConsultationRefund  TransactionType = "consultation_refund"
	TransactionSessionIncome       TransactionType = "session_income"
	TransactionRefund              TransactionType = "refund"
	TransactionLoanDisbursement    TransactionType = "loan_disbursement"
	TransactionLoanRepayment       TransactionType = "loan_repayment"
	TransactionStockPurchase       TransactionType = "stock_purchase"
	TransactionEmergencyPayment    TransactionType = "emergency_payment"
	TransactionEmergencyIncome     TransactionType = "emergency_income"
)

var validTransactionTypes = []TransactionType{
	TransactionDeposit,
	TransactionWithdrawal,
	TransactionBankTransfer,
	TransactionReferralBonus,
	TransactionConsultationFee,
	TransactionConsultationPayment,
	TransactionConsultationRefund,
	TransactionSessionIncome,
	TransactionRefund,
	TransactionLoanDisbursement,
	TransactionLoanRepayment,
	TransactionStockPurchase,
	TransactionEmergencyPayment,
	TransactionEmergencyIncome,
}

// IsValid reports whether the value matches a known transaction type.
func (t TransactionType) IsValid() bool {
	for _, candidate := range validTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTransactionType converts raw input into TransactionType.
func ParseTransactionType(value string) (TransactionType, error) {
	for _, candidate := range validTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction type %q", value)
}

// TransactionDirection records whether a log entry moved the balance.
type TransactionDirection string

const (
	DirectionCredit TransactionDirection = "credit"
	DirectionDebit  TransactionDirection = "debit"
	// DirectionMemo entries annotate history without changing the balance.
	DirectionMemo TransactionDirection = "memo"
)

func (d TransactionDirection) IsValid() bool {
	switch d {
	case DirectionCredit, DirectionDebit, DirectionMemo:
		return true
	}
	return false
}
