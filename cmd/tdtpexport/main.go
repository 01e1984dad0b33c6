// tdtpexport загружает текстовые строки стадии извлечения в SQL-таблицу
// через подготовленный INSERT с типизированными параметрами.
package main

import (
	"fmt"
	"os"

	_ "github.com/ruslano69/tdtp-export/pkg/adapters/mssql"
	_ "github.com/ruslano69/tdtp-export/pkg/adapters/mysql"
	_ "github.com/ruslano69/tdtp-export/pkg/adapters/postgres"
	_ "github.com/ruslano69/tdtp-export/pkg/adapters/sqlite"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
