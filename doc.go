// Package settings loads typed settings from configuration text and
// environment variables and reports every invalid value at its source.
//
// - Configuration text (JSON, YAML, HCL) is decoded into located trees: every
//   value keeps the span it was read from.
// - Environment variables are mapped onto the settings type through a flat key
//   table (APP_DB_HOST -> db.host); a nested value may also be given whole as
//   an inline JSON document (APP_DB={"host": "x"}).
// - Both sources are merged (environment wins), bound to the Go type, and
//   checked with `validate` struct tags.
// - Each issue carries a Source: a span in the file, or the variable name plus
//   a span inside its inline value.
//
// Design policy:
// - Keep public APIs in the root package; parsers live under source/, the
//   token engine under internal/engine, type descriptions under schema/.
// - Errors are values: LoadingError, LoadingParseError and
//   LoadingValidationError all match ErrLoading.
//
// Typical usage:
//
//	type Config struct {
//		Host string `settings:",required"`
//		Port int    `default:"8080" validate:"min=1,max=65535"`
//	}
//
//	cfg, err := settings.Load[Config](ctx, settings.FromFile("config.yaml"),
//		settings.Options{LoadEnv: true, EnvPrefix: "APP"})
//	if err != nil {
//		fmt.Fprintln(os.Stderr, settings.Render(err))
//	}
package settings
