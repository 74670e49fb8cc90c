package bridge

import (
	"fmt"

	"embedconnect/bridge/internal/connect"
)

// Kind is the catalog of embeddable component surfaces.
type Kind string

const (
	KindAccountManagement            Kind = "account-management"
	KindAccountManagementForm        Kind = "account-management-form"
	KindAccountOnboarding            Kind = "account-onboarding"
	KindAppInstall                   Kind = "app-install"
	KindAppOnboarding                Kind = "app-onboarding"
	KindAppSettings                  Kind = "app-settings"
	KindAppViewport                  Kind = "app-viewport"
	KindBalanceReport                Kind = "balance-report"
	KindBalances                     Kind = "balances"
	KindCapitalFinancing             Kind = "capital-financing"
	KindCapitalFinancingApplication  Kind = "capital-financing-application"
	KindCapitalFinancingPromotion    Kind = "capital-financing-promotion"
	KindCapitalOverview              Kind = "capital-overview"
	KindCheckScanning                Kind = "check-scanning"
	KindDebugComponentsList          Kind = "debug-components-list"
	KindDebugHostedDashboardPreview  Kind = "debug-hosted-dashboard-preview"
	KindDebugUIConfig                Kind = "debug-ui-config"
	KindDebugUILibrary               Kind = "debug-ui-library"
	KindDebugUIPreview               Kind = "debug-ui-preview"
	KindDebugUtils                   Kind = "debug-utils"
	KindDisputesList                 Kind = "disputes-list"
	KindDocuments                    Kind = "documents"
	KindEarningsChart                Kind = "earnings-chart"
	KindExportTaxTransactions        Kind = "export-tax-transactions"
	KindFinancialAccount             Kind = "financial-account"
	KindFinancialAccountTransactions Kind = "financial-account-transactions"
	KindInstantPayouts               Kind = "instant-payouts"
	KindInstantPayoutsPromotion      Kind = "instant-payouts-promotion"
	KindInvoiceHistory               Kind = "invoice-history"
	KindIssuingCard                  Kind = "issuing-card"
	KindIssuingCardsList             Kind = "issuing-cards-list"
	KindNotificationBanner           Kind = "notification-banner"
	KindPaymentDetails               Kind = "payment-details"
	KindPaymentDisputes              Kind = "payment-disputes"
	KindPaymentMethodSettings        Kind = "payment-method-settings"
	KindPayments                     Kind = "payments"
	KindPayoutDetails                Kind = "payout-details"
	KindPayoutReconciliationReport   Kind = "payout-reconciliation-report"
	KindPayouts                      Kind = "payouts"
	KindPayoutsList                  Kind = "payouts-list"
	KindProductTaxCodeSelector       Kind = "product-tax-code-selector"
	KindRecipients                   Kind = "recipients"
	KindReportingChart               Kind = "reporting-chart"
	KindTaxRegistrations             Kind = "tax-registrations"
	KindTaxSettings                  Kind = "tax-settings"
	KindTaxThresholdMonitoring       Kind = "tax-threshold-monitoring"
	KindTerminalHardwareOrders       Kind = "terminal-hardware-orders"
	KindTerminalHardwareShop         Kind = "terminal-hardware-shop"
	KindTransactionsList             Kind = "transactions-list"
)

var kinds = map[Kind]struct{}{
	KindAccountManagement: {}, KindAccountManagementForm: {}, KindAccountOnboarding: {},
	KindAppInstall: {}, KindAppOnboarding: {}, KindAppSettings: {}, KindAppViewport: {},
	KindBalanceReport: {}, KindBalances: {}, KindCapitalFinancing: {},
	KindCapitalFinancingApplication: {}, KindCapitalFinancingPromotion: {}, KindCapitalOverview: {},
	KindCheckScanning: {}, KindDebugComponentsList: {}, KindDebugHostedDashboardPreview: {},
	KindDebugUIConfig: {}, KindDebugUILibrary: {}, KindDebugUIPreview: {}, KindDebugUtils: {},
	KindDisputesList: {}, KindDocuments: {}, KindEarningsChart: {}, KindExportTaxTransactions: {},
	KindFinancialAccount: {}, KindFinancialAccountTransactions: {}, KindInstantPayouts: {},
	KindInstantPayoutsPromotion: {}, KindInvoiceHistory: {}, KindIssuingCard: {},
	KindIssuingCardsList: {}, KindNotificationBanner: {}, KindPaymentDetails: {},
	KindPaymentDisputes: {}, KindPaymentMethodSettings: {}, KindPayments: {}, KindPayoutDetails: {},
	KindPayoutReconciliationReport: {}, KindPayouts: {}, KindPayoutsList: {},
	KindProductTaxCodeSelector: {}, KindRecipients: {}, KindReportingChart: {},
	KindTaxRegistrations: {}, KindTaxSettings: {}, KindTaxThresholdMonitoring: {},
	KindTerminalHardwareOrders: {}, KindTerminalHardwareShop: {}, KindTransactionsList: {},
}

// ParseKind validates s against the catalog.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if _, ok := kinds[k]; !ok {
		return "", fmt.Errorf("%w: unknown component kind %q", connect.ErrConfiguration, s)
	}
	return k, nil
}
