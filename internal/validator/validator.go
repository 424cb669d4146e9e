// Package validator guards candidate queries for MySQL-compatible stores.
package validator

import (
	"fmt"
	"sync"

	"github.com/pingcap/tidb/pkg/parser"
	_ "github.com/pingcap/tidb/pkg/types/parser_driver" // Register TiDB parser driver.
)

// Validator wraps the TiDB parser. The parser is not safe for concurrent use,
// so calls are serialized.
type Validator struct {
	mu     sync.Mutex
	parser *parser.Parser
}

// New returns a Validator instance.
func New() *Validator {
	return &Validator{parser: parser.New()}
}

// ValidateSingle requires sql to be exactly one statement.
func (v *Validator) ValidateSingle(sql string) error {
	n, err := v.count(sql)
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("expected exactly one statement, got %d", n)
	}
	return nil
}

func (v *Validator) count(sql string) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	stmts, _, err := v.parser.Parse(sql, "", "")
	if err != nil {
		return 0, err
	}
	return len(stmts), nil
}
