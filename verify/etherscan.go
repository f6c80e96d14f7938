package verify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/protobase/launchpad/pkg/logger"
)

const (
	etherscanTimeout = 10 * time.Second

	defaultPollInterval = 5 * time.Second
	defaultPollAttempts = 10

	// Etherscan's own spelling of the parameter.
	constructorArgsParam = "constructorArguements"

	// MIT, the license the generated sources declare.
	licenseTypeMIT = "3"
)

// APIResponse is the envelope every Etherscan API response shares.
type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  string `json:"result"`
}

var errPending = errors.New("verification pending")

// Etherscan verifies sources through the Etherscan v1 contract API, which most explorers of EVM
// chains implement.
type Etherscan struct {
	endpoint     string
	apiKey       string
	chainID      string
	client       *http.Client
	pollInterval time.Duration
	pollAttempts uint
	lggr         logger.Logger
}

// EtherscanOption configures an Etherscan verifier.
type EtherscanOption func(*Etherscan)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(client *http.Client) EtherscanOption {
	return func(e *Etherscan) { e.client = client }
}

// WithChainID selects the chain on multichain explorer APIs, such as Etherscan v2, which serve
// every chain from one endpoint.
func WithChainID(id string) EtherscanOption {
	return func(e *Etherscan) { e.chainID = id }
}

// WithPoll sets how often and how many times the verification status is checked.
func WithPoll(interval time.Duration, attempts uint) EtherscanOption {
	return func(e *Etherscan) {
		e.pollInterval = interval
		e.pollAttempts = attempts
	}
}

// WithLogger sets the logger.
func WithLogger(lggr logger.Logger) EtherscanOption {
	return func(e *Etherscan) { e.lggr = lggr }
}

// NewEtherscan returns a verifier for the explorer API at endpoint, for example
// https://api-sepolia.etherscan.io/api.
func NewEtherscan(endpoint, apiKey string, opts ...EtherscanOption) *Etherscan {
	e := &Etherscan{
		endpoint:     endpoint,
		apiKey:       apiKey,
		client:       http.DefaultClient,
		pollInterval: defaultPollInterval,
		pollAttempts: defaultPollAttempts,
		lggr:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Verify submits the source and waits until the explorer reports a final status.
func (e *Etherscan) Verify(ctx context.Context, req Request) error {
	if e.apiKey == "" {
		return ErrNoAPIKey
	}

	guid, verified, err := e.submit(ctx, req)
	if err != nil {
		return err
	}
	if verified {
		e.lggr.Infow("Contract already verified", "address", req.Address.Hex())

		return nil
	}

	e.lggr.Debugw("Verification submitted", "address", req.Address.Hex(), "guid", guid)

	err = retry.Do(func() error {
		return e.checkStatus(ctx, guid)
	},
		retry.Context(ctx),
		retry.Attempts(e.pollAttempts),
		retry.Delay(e.pollInterval),
		retry.DelayType(retry.FixedDelay),
		retry.RetryIf(func(err error) bool { return errors.Is(err, errPending) }),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("verify %s at %s: %w", req.ContractName, req.Address.Hex(), err)
	}

	e.lggr.Infow("Contract verified", "address", req.Address.Hex(), "contract", req.ContractName)

	return nil
}

// submit posts the source. It reports verified when the explorer already knows the contract.
func (e *Etherscan) submit(ctx context.Context, req Request) (string, bool, error) {
	version := req.CompilerVersion
	if !strings.HasPrefix(version, "v") {
		version = "v" + version
	}

	optimized := "0"
	if req.OptimizerRuns > 0 {
		optimized = "1"
	}

	form := url.Values{
		"module":           {"contract"},
		"action":           {"verifysourcecode"},
		"apikey":           {e.apiKey},
		"contractaddress":  {req.Address.Hex()},
		"sourceCode":       {req.Source},
		"codeformat":       {"solidity-single-file"},
		"contractname":     {req.ContractName},
		"compilerversion":  {version},
		"optimizationUsed": {optimized},
		"runs":             {strconv.Itoa(req.OptimizerRuns)},
		"evmversion":       {req.EVMVersion},
		"licenseType":      {licenseTypeMIT},
	}
	form.Set(constructorArgsParam, req.ConstructorArgs)

	ctx, cancel := context.WithTimeout(ctx, etherscanTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url(nil), strings.NewReader(form.Encode()))
	if err != nil {
		return "", false, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	data, err := e.do(httpReq)
	if err != nil {
		return "", false, fmt.Errorf("submit verification of %s: %w", req.ContractName, err)
	}

	if data.Status == "1" {
		return data.Result, false, nil
	}
	if isAlreadyVerified(data.Result) {
		return "", true, nil
	}

	return "", false, fmt.Errorf("submit verification of %s: %s", req.ContractName, data.Result)
}

// checkStatus returns nil once verified, errPending while queued, and an unrecoverable error
// for any other outcome.
func (e *Etherscan) checkStatus(ctx context.Context, guid string) error {
	query := url.Values{
		"module": {"contract"},
		"action": {"checkverifystatus"},
		"guid":   {guid},
		"apikey": {e.apiKey},
	}

	ctx, cancel := context.WithTimeout(ctx, etherscanTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, e.url(query), nil)
	if err != nil {
		return retry.Unrecoverable(err)
	}

	data, err := e.do(httpReq)
	if err != nil {
		return retry.Unrecoverable(err)
	}

	switch {
	case data.Status == "1", isAlreadyVerified(data.Result):
		return nil
	case strings.Contains(strings.ToLower(data.Result), "pending"):
		return fmt.Errorf("%w: %s", errPending, data.Result)
	default:
		return retry.Unrecoverable(fmt.Errorf("verification failed: %s", data.Result))
	}
}

func (e *Etherscan) do(req *http.Request) (*APIResponse, error) {
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("explorer returned HTTP %d", resp.StatusCode)
	}

	var data APIResponse
	if err = json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode explorer response: %w", err)
	}

	return &data, nil
}

func isAlreadyVerified(result string) bool {
	return strings.Contains(strings.ToLower(result), "already verified")
}

// url returns the endpoint with query, and the chain ID when one is set.
func (e *Etherscan) url(query url.Values) string {
	if e.chainID != "" {
		if query == nil {
			query = url.Values{}
		}
		query.Set("chainid", e.chainID)
	}
	if len(query) == 0 {
		return e.endpoint
	}

	return e.endpoint + "?" + query.Encode()
}
