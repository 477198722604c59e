// Command pgsqlexec prepares and executes statements against PostgreSQL
// and prints their results.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gookit/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	pgsql "github.com/slingdata-io/gopgsql"
)

var (
	dsn         string
	configFiles []string
	debug       bool
	emulate     bool
	streaming   bool
	fetchMode   string

	logger *zap.Logger
	conn   *pgsql.Conn
)

var rootCmd = &cobra.Command{
	Use:           "pgsqlexec",
	Short:         "execute prepared statements against PostgreSQL",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if logger, err = newLogger(debug); err != nil {
			return err
		}
		opts, err := sessionOptions()
		if err != nil {
			return err
		}
		conn, err = pgsql.Connect(cmd.Context(), dsn, opts...)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if conn != nil {
			conn.Close()
		}
		_ = logger.Sync()
	},
}

var queryCmd = &cobra.Command{
	Use:   "query SQL [ARGS...]",
	Short: "prepare a query, bind ARGS to its placeholders in order and print the rows",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stmt, err := prepare(cmd.Context(), args[0], args[1:])
		if err != nil {
			return err
		}
		defer stmt.Free(cmd.Context())

		res, err := stmt.Execute(cmd.Context(), pgsql.WithBuffered(!streaming))
		if err != nil {
			return err
		}
		if res.Result == nil {
			color.Info.Printf("%d row(s) affected\n", res.Affected)
			return nil
		}
		defer res.Result.Free()
		return printRows(cmd.OutOrStdout(), res.Result)
	},
}

var execCmd = &cobra.Command{
	Use:   "exec SQL [ARGS...]",
	Short: "prepare a mutating statement, bind ARGS and print the affected row count",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stmt, err := prepare(cmd.Context(), args[0], args[1:])
		if err != nil {
			return err
		}
		defer stmt.Free(cmd.Context())

		res, err := stmt.Execute(cmd.Context())
		if err != nil {
			return err
		}
		if res.Result != nil {
			res.Result.Free()
		}
		color.Info.Printf("%d row(s) affected\n", res.Affected)
		return nil
	},
}

var dropCmd = &cobra.Command{
	Use:   "drop-table NAME",
	Short: "drop a table, retrying with CASCADE when other objects depend on it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := pgsql.DropTable(cmd.Context(), conn, args[0]); err != nil {
			return err
		}
		color.Info.Printf("table %s dropped\n", args[0])
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&dsn, "dsn", os.Getenv("PGSQL_DSN"), "libpq connection string or URI (default $PGSQL_DSN)")
	flags.StringSliceVar(&configFiles, "config", nil, "TOML option files")
	flags.BoolVar(&debug, "debug", false, "log executed statements")
	flags.BoolVar(&emulate, "emulate", false, "quote values client side instead of using PREPARE")
	flags.StringVar(&fetchMode, "fetchmode", "", "row shape: ordered, assoc or object")
	queryCmd.Flags().BoolVar(&streaming, "streaming", false, "use a forward-only cursor")

	rootCmd.AddCommand(queryCmd, execCmd, dropCmd)
}

func newLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

func sessionOptions() ([]pgsql.Option, error) {
	var opts []pgsql.Option
	if len(configFiles) > 0 {
		loaded, err := pgsql.LoadOptions(configFiles...)
		if err != nil {
			return nil, err
		}
		opts = append(opts, pgsql.WithOptions(loaded))
	}
	if fetchMode != "" {
		mode, err := pgsql.ParseFetchMode(fetchMode)
		if err != nil {
			return nil, err
		}
		opts = append(opts, pgsql.WithFetchMode(mode))
	}
	if emulate {
		opts = append(opts, pgsql.WithEmulatePrepare(true))
	}
	return append(opts, pgsql.WithLogger(logger)), nil
}

func prepare(ctx context.Context, query string, args []string) (*pgsql.Statement, error) {
	stmt, err := conn.PrepareStatement(ctx, query)
	if err != nil {
		return nil, err
	}
	values := make([]any, len(args))
	for i, a := range args {
		values[i] = a
	}
	if err := stmt.BindArgs(values...); err != nil {
		stmt.Free(ctx)
		return nil, err
	}
	return stmt, nil
}

func printRows(w io.Writer, cur pgsql.Cursor) error {
	columns, err := cur.ColumnList()
	if err != nil {
		return err
	}
	fmt.Fprintln(w, color.Info.Sprint(strings.Join(columns, "\t")))
	n := 0
	for {
		row, err := cur.FetchRow(pgsql.FetchDefault)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(w, formatRow(columns, row))
		n++
	}
	fmt.Fprintln(w, color.Comment.Sprintf("(%d rows)", n))
	return nil
}

func formatRow(columns []string, row any) string {
	var cells []string
	switch r := row.(type) {
	case []any:
		for _, v := range r {
			cells = append(cells, formatValue(v))
		}
	case map[string]any:
		for _, c := range columns {
			cells = append(cells, formatValue(r[c]))
		}
	case pgsql.Object:
		for _, c := range columns {
			cells = append(cells, formatValue(r[c]))
		}
	default:
		return fmt.Sprintf("%v", row)
	}
	return strings.Join(cells, "\t")
}

func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	if b, ok := v.([]byte); ok {
		return fmt.Sprintf("\\x%x", b)
	}
	return fmt.Sprint(v)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		color.Error.Printf("%v\n", err)
		os.Exit(1)
	}
}
