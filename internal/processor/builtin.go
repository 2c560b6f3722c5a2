package processor

import (
	"fmt"

	"github.com/iho/txledger/internal/domain"
)

// Built-in processor keys.
const (
	KeyDeposit          = "deposit"
	KeyCharge           = "charge"
	KeyTransfer         = "transfer"
	KeyConversionDebit  = "conversion_debit"
	KeyConversionCredit = "conversion_credit"
	KeyHold             = "hold"
)

// Builtins returns the stock processors keyed by name.
func Builtins() map[string]Processor {
	return map[string]Processor{
		KeyDeposit:          Deposit{},
		KeyCharge:           Charge{},
		KeyTransfer:         Transfer{},
		KeyConversionDebit:  ConversionDebit{},
		KeyConversionCredit: ConversionCredit{},
		KeyHold:             Hold{},
	}
}

// Deposit credits a holder; the commission is netted out of the credit.
type Deposit struct{}

func (Deposit) Convention() SignConvention { return SignConvention{CreditCommission: true} }
func (Deposit) InitialSuccess()            {}

// Charge debits a holder; the commission is paid on top.
type Charge struct{}

func (Charge) Convention() SignConvention { return SignConvention{DebitCommission: true} }
func (Charge) InitialSuccess()            {}

// Hold reserves funds on the from side. The transaction starts on_hold and
// is settled or released by a later status change.
type Hold struct{}

func (Hold) Convention() SignConvention { return SignConvention{DebitCommission: true} }
func (Hold) InitialHolding()            {}

// Transfer moves money between two holders in one currency, either as a
// single leg or as a debit leg plus a credit leg sharing a batch.
type Transfer struct{}

func (Transfer) Convention() SignConvention { return SignConvention{DebitCommission: true} }
func (Transfer) InitialSuccess()            {}

func (Transfer) ValidateBatch(legs []*domain.Transaction) error {
	for _, leg := range legs {
		if leg.Processor != KeyTransfer {
			return fmt.Errorf("%w: transfer batch contains %s leg", domain.ErrBatchIntegrityViolation, leg.Processor)
		}
	}

	switch len(legs) {
	case 1:
		if legs[0].From == nil || legs[0].To == nil {
			return fmt.Errorf("%w: single-leg transfer needs from and to", domain.ErrBatchIntegrityViolation)
		}
		return nil
	case 2:
	default:
		return fmt.Errorf("%w: transfer batch has %d legs", domain.ErrBatchIntegrityViolation, len(legs))
	}

	debit, credit := legs[0], legs[1]
	if debit.From == nil {
		debit, credit = credit, debit
	}

	switch {
	case debit.From == nil || debit.To != nil:
		return fmt.Errorf("%w: transfer debit leg must only have from", domain.ErrBatchIntegrityViolation)
	case credit.To == nil || credit.From != nil:
		return fmt.Errorf("%w: transfer credit leg must only have to", domain.ErrBatchIntegrityViolation)
	case debit.Currency != credit.Currency:
		return fmt.Errorf("%w: transfer legs differ in currency", domain.ErrBatchIntegrityViolation)
	case *debit.From == *credit.To:
		return fmt.Errorf("%w: transfer legs share a holder", domain.ErrBatchIntegrityViolation)
	case !debit.Amount.Equal(credit.Amount):
		return fmt.Errorf("%w: debit %s does not match credit %s",
			domain.ErrBatchIntegrityViolation, debit.Amount, credit.Amount)
	case !credit.Commission.IsZero():
		return fmt.Errorf("%w: transfer commission belongs to the debit leg", domain.ErrBatchIntegrityViolation)
	}

	return nil
}

// ConversionDebit is the source leg of a currency conversion.
type ConversionDebit struct{}

func (ConversionDebit) Convention() SignConvention { return SignConvention{DebitCommission: true} }
func (ConversionDebit) InitialSuccess()            {}

func (ConversionDebit) ValidateBatch(legs []*domain.Transaction) error {
	return validateConversion(legs)
}

// ConversionCredit is the target leg of a currency conversion. The amount is
// supplied by the caller.
type ConversionCredit struct{}

func (ConversionCredit) Convention() SignConvention { return SignConvention{CreditCommission: true} }
func (ConversionCredit) InitialSuccess()            {}

func (ConversionCredit) ValidateBatch(legs []*domain.Transaction) error {
	return validateConversion(legs)
}

func validateConversion(legs []*domain.Transaction) error {
	if len(legs) != 2 {
		return fmt.Errorf("%w: conversion needs exactly two legs, got %d", domain.ErrBatchIntegrityViolation, len(legs))
	}

	var debit, credit *domain.Transaction
	for _, leg := range legs {
		switch leg.Processor {
		case KeyConversionDebit:
			debit = leg
		case KeyConversionCredit:
			credit = leg
		}
	}

	switch {
	case debit == nil || credit == nil:
		return fmt.Errorf("%w: conversion needs one debit and one credit leg", domain.ErrBatchIntegrityViolation)
	case debit.From == nil || debit.To != nil:
		return fmt.Errorf("%w: conversion debit leg must only have from", domain.ErrBatchIntegrityViolation)
	case credit.To == nil || credit.From != nil:
		return fmt.Errorf("%w: conversion credit leg must only have to", domain.ErrBatchIntegrityViolation)
	case debit.Currency == credit.Currency:
		return fmt.Errorf("%w: conversion legs share currency %s", domain.ErrBatchIntegrityViolation, debit.Currency)
	}

	return nil
}
