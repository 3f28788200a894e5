package bootstrap

import (
	"fmt"

	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	_ "github.com/pingcap/tidb/pkg/parser/test_driver" // value expressions in DEFAULT clauses
)

// DDLValidator checks schema statements with the TiDB parser before they run.
type DDLValidator struct {
	parser *parser.Parser
}

func NewDDLValidator() *DDLValidator {
	return &DDLValidator{parser: parser.New()}
}

// ValidateCreateTable accepts exactly one CREATE TABLE IF NOT EXISTS statement
// for table.
func (v *DDLValidator) ValidateCreateTable(table, ddl string) error {
	stmts, _, err := v.parser.Parse(ddl, "", "")
	if err != nil {
		return fmt.Errorf("DDL for %s does not parse: %w", table, err)
	}
	if len(stmts) != 1 {
		return fmt.Errorf("DDL for %s must be a single statement, got %d", table, len(stmts))
	}
	create, ok := stmts[0].(*ast.CreateTableStmt)
	if !ok {
		return fmt.Errorf("DDL for %s is not a CREATE TABLE statement", table)
	}
	if !create.IfNotExists {
		return fmt.Errorf("DDL for %s must use IF NOT EXISTS", table)
	}
	if got := create.Table.Name.O; got != table {
		return fmt.Errorf("DDL for %s creates %s", table, got)
	}
	return nil
}
