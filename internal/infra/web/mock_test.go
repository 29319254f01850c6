//go:build !integration

package web

import (
	"context"
	"io"

	"github.com/rs/zerolog"

	"github.com/onlymatt43/ONLY-ACCESS/internal/domain/model"
	"github.com/onlymatt43/ONLY-ACCESS/internal/usecase"
)

func testLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

// --- Mock Use Cases ---

type mockIssueUC struct {
	IssueBatchFunc func(ctx context.Context, req usecase.IssueRequest) (*usecase.IssuedBatch, error)
}

func (m *mockIssueUC) IssueBatch(ctx context.Context, req usecase.IssueRequest) (*usecase.IssuedBatch, error) {
	return m.IssueBatchFunc(ctx, req)
}

type mockRedeemUC struct {
	RedeemFunc func(ctx context.Context, familyID, plaintext, clientIP string) (*usecase.Grant, error)
}

func (m *mockRedeemUC) Redeem(ctx context.Context, familyID, plaintext, clientIP string) (*usecase.Grant, error) {
	return m.RedeemFunc(ctx, familyID, plaintext, clientIP)
}

type mockSessionUC struct {
	ValidateFunc func(ctx context.Context, token, clientIP string) (*usecase.SessionStatus, error)
}

func (m *mockSessionUC) Validate(ctx context.Context, token, clientIP string) (*usecase.SessionStatus, error) {
	return m.ValidateFunc(ctx, token, clientIP)
}

type mockSiteUC struct {
	CreateFunc func(ctx context.Context, title, iframeURL, merchantLink string) (*model.Site, error)
	ListFunc   func(ctx context.Context) ([]model.Site, error)
	DeleteFunc func(ctx context.Context, title string) error
}

func (m *mockSiteUC) Create(ctx context.Context, title, iframeURL, merchantLink string) (*model.Site, error) {
	return m.CreateFunc(ctx, title, iframeURL, merchantLink)
}

func (m *mockSiteUC) List(ctx context.Context) ([]model.Site, error) { return m.ListFunc(ctx) }

func (m *mockSiteUC) Delete(ctx context.Context, title string) error { return m.DeleteFunc(ctx, title) }

type mockStatsUC struct {
	TotalsFunc func(ctx context.Context) (*usecase.CodeTotals, error)
	LogsFunc   func(ctx context.Context) ([]model.RedemptionEntry, error)
	ExportFunc func(ctx context.Context) (*model.Document, error)
}

func (m *mockStatsUC) Totals(ctx context.Context) (*usecase.CodeTotals, error) {
	return m.TotalsFunc(ctx)
}

func (m *mockStatsUC) Logs(ctx context.Context) ([]model.RedemptionEntry, error) {
	return m.LogsFunc(ctx)
}

func (m *mockStatsUC) Export(ctx context.Context) (*model.Document, error) {
	return m.ExportFunc(ctx)
}
