// internal/service/distribution/infrastructure/rule/cel_engine.go
package rule

import (
	"sync"

	"tripnexus/internal/service/distribution/domain"
	"tripnexus/internal/service/distribution/domain/port"

	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"
)

// CELRuleEngine 用CEL表达式判定快照是否匹配渠道订阅规则，实现 port.RuleEngine。
// 规则里可用的变量: resource_type, city, date (string), quantity (int),
// price (double), is_closed (bool)。
// 编译结果按规则文本缓存，渠道规则数量有限且很少变化。
type CELRuleEngine struct {
	env *cel.Env

	mu       sync.RWMutex
	programs map[string]cel.Program
}

func NewCELRuleEngine() (*CELRuleEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("resource_type", cel.StringType),
		cel.Variable("city", cel.StringType),
		cel.Variable("date", cel.StringType),
		cel.Variable("quantity", cel.IntType),
		cel.Variable("price", cel.DoubleType),
		cel.Variable("is_closed", cel.BoolType),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create cel environment")
	}
	return &CELRuleEngine{
		env:      env,
		programs: make(map[string]cel.Program),
	}, nil
}

var _ port.RuleEngine = (*CELRuleEngine)(nil)

func (e *CELRuleEngine) Evaluate(rule string, snapshot domain.InventorySnapshot) (bool, error) {
	if rule == "" {
		return true, nil
	}
	prg, err := e.program(rule)
	if err != nil {
		return false, err
	}

	out, _, err := prg.Eval(map[string]interface{}{
		"resource_type": snapshot.ResourceType,
		"city":          snapshot.City,
		"date":          snapshot.Date,
		"quantity":      snapshot.Quantity,
		"price":         snapshot.Price,
		"is_closed":     snapshot.IsClosed,
	})
	if err != nil {
		return false, errors.Wrapf(err, "evaluate rule %q", rule)
	}

	matched, ok := out.Value().(bool)
	if !ok {
		return false, errors.Errorf("rule %q did not evaluate to a boolean", rule)
	}
	return matched, nil
}

func (e *CELRuleEngine) program(rule string) (cel.Program, error) {
	e.mu.RLock()
	prg, ok := e.programs[rule]
	e.mu.RUnlock()
	if ok {
		return prg, nil
	}

	ast, issues := e.env.Compile(rule)
	if issues != nil && issues.Err() != nil {
		return nil, errors.Wrapf(issues.Err(), "compile rule %q", rule)
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, errors.Wrapf(err, "build program for rule %q", rule)
	}

	e.mu.Lock()
	e.programs[rule] = prg
	e.mu.Unlock()
	return prg, nil
}
