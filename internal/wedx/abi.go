package wedx

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Built-in ABI fragments for the methods the agent calls. They are used when
// the deployment document does not ship the full contract ABIs.
const (
	groupABIJSON = `[
  {"type":"function","name":"getDeployerProAddress","inputs":[],"outputs":[{"name":"","type":"address"}],"stateMutability":"view"},
  {"type":"function","name":"getAssetManagerAddress","inputs":[],"outputs":[{"name":"","type":"address"}],"stateMutability":"view"}
]`

	deployerABIJSON = `[
  {"type":"function","name":"getUserProPortfolioAddress","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"address"}],"stateMutability":"view"},
  {"type":"function","name":"createProPortfolio","inputs":[],"outputs":[],"stateMutability":"nonpayable"}
]`

	portfolioABIJSON = `[
  {"type":"function","name":"deposit","inputs":[],"outputs":[],"stateMutability":"payable"},
  {"type":"function","name":"withdraw","inputs":[{"name":"percAmount","type":"uint256"}],"outputs":[],"stateMutability":"nonpayable"},
  {"type":"function","name":"setPortfolio","inputs":[{"name":"assets","type":"address[]"},{"name":"distribution","type":"uint256[]"}],"outputs":[],"stateMutability":"nonpayable"},
  {"type":"function","name":"getActualDistribution","inputs":[],"outputs":[{"name":"","type":"uint256[]"}],"stateMutability":"view"},
  {"type":"function","name":"getMinPercAllowance","inputs":[],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
  {"type":"function","name":"getAddresses","inputs":[],"outputs":[{"name":"","type":"address[]"}],"stateMutability":"view"},
  {"type":"function","name":"supplyLendTokens","inputs":[{"name":"assets","type":"address[]"},{"name":"protocolId","type":"uint256[]"}],"outputs":[],"stateMutability":"nonpayable"},
  {"type":"function","name":"withdrawLendTokens","inputs":[{"name":"assets","type":"address[]"}],"outputs":[],"stateMutability":"nonpayable"},
  {"type":"function","name":"rankMe","inputs":[],"outputs":[],"stateMutability":"nonpayable"}
]`

	managerABIJSON = `[
  {"type":"function","name":"getTraderScore","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"int256"}],"stateMutability":"view"},
  {"type":"function","name":"getTraderData","inputs":[{"name":"user","type":"address"}],"outputs":[
    {"name":"portfolio","type":"address"},
    {"name":"lastUpdate","type":"uint256"},
    {"name":"score","type":"int256"},
    {"name":"points","type":"int256[]"}
  ],"stateMutability":"view"},
  {"type":"function","name":"getNPoints","inputs":[],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"}
]`
)

// parseABI prefers the deployment-provided ABI and falls back to builtin.
func parseABI(name, custom, builtin string) (abi.ABI, error) {
	src := strings.TrimSpace(custom)
	if src == "" {
		src = builtin
	}
	parsed, err := abi.JSON(strings.NewReader(src))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse %s abi: %w", name, err)
	}
	return parsed, nil
}

func requireMethods(name string, parsed abi.ABI, methods ...string) error {
	for _, m := range methods {
		if _, ok := parsed.Methods[m]; !ok {
			return fmt.Errorf("%s abi missing method %s", name, m)
		}
	}
	return nil
}
