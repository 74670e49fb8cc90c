package bridge

import "encoding/json"

// Inbound message types sent by the hosted content.
const (
	MsgFetchClientSecret        = "fetchClientSecret"
	MsgPageDidLoad              = "pageDidLoad"
	MsgSetterFunctionCalled     = "onSetterFunctionCalled"
	MsgDebug                    = "debug"
	MsgAccountSessionClaimed    = "accountSessionClaimed"
	MsgOpenFinancialConnections = "openFinancialConnections"
	MsgCloseWebView             = "closeWebView"
	MsgCallSupplementalFunction = "callSupplementalFunction"
	MsgOpenAuthenticatedWebView = "openAuthenticatedWebView"
)

// Envelope is the shape of every inbound message.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Callback receives the serialized value of a setter call untouched.
type Callback func(value json.RawMessage)

type SetterCall struct {
	Setter string          `json:"setter"`
	Value  json.RawMessage `json:"value"`
}

type PageDidLoad struct {
	PageViewID string `json:"pageViewId,omitempty"`
}

type LoaderStart struct {
	ElementTagName string `json:"elementTagName"`
}

type EmbeddedError struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

type LoadError struct {
	ElementTagName string        `json:"elementTagName"`
	Error          EmbeddedError `json:"error"`
}

// knownLoadErrorTypes are the error types the hosted content documents.
var knownLoadErrorTypes = map[string]bool{
	"api_connection_error":         true,
	"authentication_error":         true,
	"account_session_create_error": true,
	"invalid_request_error":        true,
	"rate_limit_error":             true,
	"api_error":                    true,
}

type AccountSessionClaimed struct {
	ElementTagName string `json:"elementTagName"`
	MerchantID     string `json:"merchantId"`
}

type FinancialConnectionsRequest struct {
	ClientSecret       string `json:"clientSecret"`
	ID                 string `json:"id"`
	ConnectedAccountID string `json:"connectedAccountId"`
}

type SupplementalFunctionCall struct {
	FunctionName string            `json:"functionName"`
	Args         []json.RawMessage `json:"args"`
	InvocationID string            `json:"invocationId"`
}

// SupplementalFunctionCalls is keyed by the hosted element that issued the call.
type SupplementalFunctionCalls map[string]SupplementalFunctionCall

type AuthenticatedWebViewRequest struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Error codes the bridge itself reports for a financial connections request.
const (
	FinancialConnectionsInvalidClientSecret = "InvalidClientSecret"
	FinancialConnectionsAlreadyInProgress   = "AlreadyInProgress"
	FinancialConnectionsUnexpectedError     = "UnexpectedError"
)

// FinancialConnectionsError is reported back when the flow fails.
type FinancialConnectionsError struct {
	Code             string `json:"code"`
	Message          string `json:"message"`
	LocalizedMessage string `json:"localizedMessage,omitempty"`
	Type             string `json:"type,omitempty"`
}

// FinancialConnectionsResult is pushed back to the hosted content. Session
// and Token are opaque to the bridge.
type FinancialConnectionsResult struct {
	Session json.RawMessage
	Token   json.RawMessage
	Error   *FinancialConnectionsError
}
