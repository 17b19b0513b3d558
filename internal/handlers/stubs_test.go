package handlers

import (
	"context"

	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/services"
)

type stubShippingService struct {
	quoteFunc func(ctx context.Context, cmd services.ShippingQuoteCommand) (services.ShippingQuote, error)
}

func (s *stubShippingService) QuoteShipping(ctx context.Context, cmd services.ShippingQuoteCommand) (services.ShippingQuote, error) {
	return s.quoteFunc(ctx, cmd)
}

func (s *stubShippingService) ZoneIndex(context.Context, string) (*services.ZoneIndex, error) {
	return nil, nil
}

type stubCouponService struct {
	applyFunc  func(ctx context.Context, cmd services.ApplyCouponCommand) (services.CouponApplication, error)
	redeemFunc func(ctx context.Context, cmd services.RedeemCouponCommand) (services.CouponRedemption, error)
}

func (s *stubCouponService) ApplyCoupon(ctx context.Context, cmd services.ApplyCouponCommand) (services.CouponApplication, error) {
	return s.applyFunc(ctx, cmd)
}

func (s *stubCouponService) Redeem(ctx context.Context, cmd services.RedeemCouponCommand) (services.CouponRedemption, error) {
	return s.redeemFunc(ctx, cmd)
}

type stubPaymentDispatcher struct {
	listFunc     func(ctx context.Context, tenantID string) ([]services.GatewayDescriptor, error)
	initiateFunc func(ctx context.Context, cmd services.InitiatePaymentCommand) (services.PaymentInitiation, error)
}

func (s *stubPaymentDispatcher) ListActiveGateways(ctx context.Context, tenantID string) ([]services.GatewayDescriptor, error) {
	return s.listFunc(ctx, tenantID)
}

func (s *stubPaymentDispatcher) Initiate(ctx context.Context, cmd services.InitiatePaymentCommand) (services.PaymentInitiation, error) {
	return s.initiateFunc(ctx, cmd)
}

type stubStatusReader struct {
	readFunc func(ctx context.Context, tenantID, orderID string) (services.PaymentStatusView, error)
}

func (s *stubStatusReader) ReadPaymentStatus(ctx context.Context, tenantID, orderID string) (services.PaymentStatusView, error) {
	return s.readFunc(ctx, tenantID, orderID)
}

type stubReconciler struct {
	reconcileFunc func(ctx context.Context, cmd services.ReconcileCommand) (services.ReconciliationOutcome, error)
}

func (s *stubReconciler) Reconcile(ctx context.Context, cmd services.ReconcileCommand) (services.ReconciliationOutcome, error) {
	return s.reconcileFunc(ctx, cmd)
}

type stubSweeper struct {
	result services.SweepResult
	err    error
	calls  int
}

func (s *stubSweeper) Sweep(context.Context) (services.SweepResult, error) {
	s.calls++
	return s.result, s.err
}

type stubSystemService struct {
	report services.SystemHealthReport
	err    error
}

func (s *stubSystemService) HealthReport(context.Context) (services.SystemHealthReport, error) {
	return s.report, s.err
}
