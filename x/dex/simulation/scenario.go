package simulation

import (
	"fmt"
	"os"
	"strings"
	"time"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"gopkg.in/yaml.v3"

	"github.com/paw-chain/pawdex/x/dex/types"
)

// Scenario is a scripted sequence of dex operations, decoded from YAML.
// Amounts are decimal strings so they are not limited to 64 bits.
type Scenario struct {
	Name     string    `yaml:"name"`
	Accounts []Funding `yaml:"accounts"`
	Steps    []Step    `yaml:"steps"`
}

// Funding mints the listed coins to a named account before the first step.
type Funding struct {
	Name     string `yaml:"name"`
	Balances string `yaml:"balances"`
}

// Step is one scenario action. Which fields matter depends on Action.
type Step struct {
	Action  string `yaml:"action"`
	Account string `yaml:"account"`

	TokenA string `yaml:"token_a"`
	TokenB string `yaml:"token_b"`
	FeeBps uint32 `yaml:"fee_bps"`

	AmountA string `yaml:"amount_a"`
	AmountB string `yaml:"amount_b"`
	MinA    string `yaml:"min_a"`
	MinB    string `yaml:"min_b"`
	Shares  string `yaml:"shares"`

	TokenIn  string `yaml:"token_in"`
	AmountIn string `yaml:"amount_in"`
	MinOut   string `yaml:"min_out"`

	Orders []OrderSpec `yaml:"orders"`

	Seconds     int64  `yaml:"seconds"`
	Cardinality uint32 `yaml:"cardinality"`
	Denom       string `yaml:"denom"`

	// ExpectError, when set, must be a substring of the step's error.
	ExpectError string `yaml:"expect_error"`
}

// OrderSpec is a batch order placed by a named account.
type OrderSpec struct {
	Account  string `yaml:"account"`
	TokenIn  string `yaml:"token_in"`
	AmountIn string `yaml:"amount_in"`
	MinOut   string `yaml:"min_out"`
	Priority bool   `yaml:"priority"`
}

// StepResult reports the outcome of one step.
type StepResult struct {
	Index  int
	Action string
	Output string
	Err    error
}

// ParseScenario decodes a YAML scenario.
func ParseScenario(bz []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(bz, &s); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	if len(s.Steps) == 0 {
		return nil, fmt.Errorf("scenario %q has no steps", s.Name)
	}
	return &s, nil
}

// LoadScenario reads and decodes a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	bz, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(bz)
}

func parseAmount(field, s string) (math.Int, error) {
	if strings.TrimSpace(s) == "" {
		return math.ZeroInt(), nil
	}
	amt, ok := math.NewIntFromString(strings.ReplaceAll(s, "_", ""))
	if !ok {
		return math.Int{}, fmt.Errorf("%s: invalid amount %q", field, s)
	}
	return amt, nil
}

// Run funds the scenario accounts and executes every step, one block per
// step unless the step advances time itself. A step whose outcome does not
// match its expectation stops the run.
func (e *Env) Run(s *Scenario) ([]StepResult, error) {
	for _, f := range s.Accounts {
		coins, err := sdk.ParseCoinsNormalized(f.Balances)
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", f.Name, err)
		}
		if err := e.Bank.Mint(e.Ctx, Account(f.Name), coins); err != nil {
			return nil, fmt.Errorf("account %s: %w", f.Name, err)
		}
	}

	results := make([]StepResult, 0, len(s.Steps))
	for i, step := range s.Steps {
		out, err := e.runStep(step)
		results = append(results, StepResult{Index: i, Action: step.Action, Output: out, Err: err})
		e.logger.Info("scenario step", "scenario", s.Name, "index", i, "action", step.Action, "output", out, "error", err)

		switch {
		case step.ExpectError == "" && err != nil:
			return results, fmt.Errorf("step %d (%s): %w", i, step.Action, err)
		case step.ExpectError != "" && err == nil:
			return results, fmt.Errorf("step %d (%s): expected error containing %q", i, step.Action, step.ExpectError)
		case step.ExpectError != "" && !strings.Contains(err.Error(), step.ExpectError):
			return results, fmt.Errorf("step %d (%s): error %q does not contain %q", i, step.Action, err, step.ExpectError)
		}

		if step.Action != "advance" {
			e.NextBlock(time.Second)
		}
	}
	return results, nil
}

func (e *Env) runStep(step Step) (string, error) {
	k := e.Keeper
	ctx := e.Ctx
	account := Account(step.Account)
	poolID := types.DerivePoolID(step.TokenA, step.TokenB, step.FeeBps)

	switch step.Action {
	case "create_pool":
		pool, err := k.CreatePool(ctx, account, step.TokenA, step.TokenB, step.FeeBps)
		if err != nil {
			return "", err
		}
		return pool.String(), nil

	case "add_liquidity":
		amounts, err := parseAll(map[string]string{"amount_a": step.AmountA, "amount_b": step.AmountB, "min_a": step.MinA, "min_b": step.MinB})
		if err != nil {
			return "", err
		}
		shares, err := k.AddLiquidity(ctx, account, poolID, amounts["amount_a"], amounts["amount_b"], amounts["min_a"], amounts["min_b"])
		if err != nil {
			return "", err
		}
		return "shares=" + shares.String(), nil

	case "remove_liquidity":
		amounts, err := parseAll(map[string]string{"shares": step.Shares, "min_a": step.MinA, "min_b": step.MinB})
		if err != nil {
			return "", err
		}
		a, b, err := k.RemoveLiquidity(ctx, account, poolID, amounts["shares"], amounts["min_a"], amounts["min_b"])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("amount_a=%s amount_b=%s", a, b), nil

	case "swap":
		amounts, err := parseAll(map[string]string{"amount_in": step.AmountIn, "min_out": step.MinOut})
		if err != nil {
			return "", err
		}
		out, err := k.Swap(ctx, account, poolID, step.TokenIn, amounts["amount_in"], amounts["min_out"], nil)
		if err != nil {
			return "", err
		}
		return "amount_out=" + out.String(), nil

	case "set_executor":
		if err := k.SetBatchExecutor(ctx, e.Authority.String(), account, true); err != nil {
			return "", err
		}
		return "executor=" + account.String(), nil

	case "batch":
		orders := make([]types.BatchOrder, 0, len(step.Orders))
		for j, o := range step.Orders {
			amounts, err := parseAll(map[string]string{"amount_in": o.AmountIn, "min_out": o.MinOut})
			if err != nil {
				return "", fmt.Errorf("order %d: %w", j, err)
			}
			orders = append(orders, types.BatchOrder{
				Trader:       Account(o.Account).String(),
				TokenIn:      o.TokenIn,
				AmountIn:     amounts["amount_in"],
				MinAmountOut: amounts["min_out"],
				Priority:     o.Priority,
			})
		}
		res, err := k.ExecuteBatchSwap(ctx, account, poolID, orders)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("price=%s filled=%d/%d", res.ClearingPrice, res.FilledCount(), len(res.Orders)), nil

	case "advance":
		e.NextBlock(time.Duration(step.Seconds) * time.Second)
		return fmt.Sprintf("height=%d time=%s", e.Ctx.BlockHeight(), e.Ctx.BlockTime().Format(time.RFC3339)), nil

	case "grow_oracle":
		next, err := k.GrowOracle(ctx, poolID, step.Cardinality)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("cardinality_next=%d", next), nil

	case "twap":
		twap, err := k.GetTWAP(ctx, poolID, step.Seconds)
		if err != nil {
			return "", err
		}
		return "twap=" + twap.String(), nil

	case "collect_fees":
		amt, err := k.CollectFees(ctx, e.Authority.String(), step.Denom)
		if err != nil {
			return "", err
		}
		return "collected=" + amt.String() + step.Denom, nil

	default:
		return "", fmt.Errorf("unknown action %q", step.Action)
	}
}

func parseAll(fields map[string]string) (map[string]math.Int, error) {
	out := make(map[string]math.Int, len(fields))
	for name, raw := range fields {
		amt, err := parseAmount(name, raw)
		if err != nil {
			return nil, err
		}
		out[name] = amt
	}
	return out, nil
}
