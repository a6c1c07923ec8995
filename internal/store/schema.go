package store

// Schema for the four relational tables. Both dialects share table and column
// names; they differ in auto-increment syntax and column types. SQLite keeps
// prices as fixed-point TEXT so no value passes through a float.
//
// Duration columns hold elapsed seconds.

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS instrument (
		ticker       TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		industry     TEXT,
		asset_class  TEXT NOT NULL DEFAULT 'stock'
		             CHECK (asset_class IN ('stock', 'etf', 'index', 'crypto', 'other')),
		created_at   TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
	)`,
	`CREATE TABLE IF NOT EXISTS bar (
		bar_id      INTEGER PRIMARY KEY AUTOINCREMENT,
		ticker      TEXT NOT NULL REFERENCES instrument (ticker) ON DELETE CASCADE,
		bar_date    TEXT NOT NULL,
		bar_time    TEXT NOT NULL DEFAULT '00:00:00',
		timeframe   TEXT NOT NULL,
		open_price  TEXT NOT NULL,
		high_price  TEXT NOT NULL,
		low_price   TEXT NOT NULL,
		close_price TEXT NOT NULL,
		volume      INTEGER NOT NULL DEFAULT 0 CHECK (volume >= 0),
		UNIQUE (ticker, bar_date, bar_time, timeframe)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bar_lookup ON bar (ticker, timeframe, bar_date)`,
	`CREATE TABLE IF NOT EXISTS backtest_run (
		run_id                INTEGER PRIMARY KEY AUTOINCREMENT,
		description           TEXT,
		ticker                TEXT NOT NULL REFERENCES instrument (ticker) ON DELETE CASCADE,
		strategy_name         TEXT NOT NULL,
		strategy_parameters   TEXT,
		start_date            TEXT NOT NULL,
		end_date              TEXT NOT NULL,
		duration              INTEGER,
		exposure_time_pct     TEXT,
		equity_final          TEXT,
		equity_peak           TEXT,
		return_pct            TEXT,
		buy_hold_return_pct   TEXT,
		annual_return_pct     TEXT,
		annual_volatility_pct TEXT,
		sharpe_ratio          TEXT,
		sortino_ratio         TEXT,
		calmar_ratio          TEXT,
		max_drawdown_pct      TEXT,
		avg_drawdown_pct      TEXT,
		max_drawdown_duration INTEGER,
		avg_drawdown_duration INTEGER,
		total_trades          INTEGER NOT NULL DEFAULT 0,
		win_rate_pct          TEXT,
		best_trade_pct        TEXT,
		worst_trade_pct       TEXT,
		avg_trade_pct         TEXT,
		max_trade_duration    INTEGER,
		avg_trade_duration    INTEGER,
		profit_factor         TEXT,
		expectancy_pct        TEXT,
		sqn                   TEXT,
		created_at            TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
	)`,
	`CREATE INDEX IF NOT EXISTS idx_backtest_run_ticker ON backtest_run (ticker)`,
	`CREATE TABLE IF NOT EXISTS trade_detail (
		detail_id          INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id             INTEGER NOT NULL REFERENCES backtest_run (run_id) ON DELETE CASCADE,
		trade_number       INTEGER NOT NULL CHECK (trade_number > 0),
		buy_date           TEXT NOT NULL,
		buy_time           TEXT NOT NULL,
		sell_date          TEXT NOT NULL,
		sell_time          TEXT NOT NULL,
		buy_price          TEXT NOT NULL,
		sell_price         TEXT NOT NULL,
		position_size      INTEGER NOT NULL CHECK (position_size > 0),
		trade_duration     INTEGER,
		trade_return_pct   TEXT,
		profit_loss        TEXT,
		equity_after_trade TEXT,
		UNIQUE (run_id, trade_number)
	)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS instrument (
		ticker       VARCHAR(16) PRIMARY KEY,
		display_name TEXT NOT NULL,
		industry     TEXT,
		asset_class  VARCHAR(16) NOT NULL DEFAULT 'stock'
		             CHECK (asset_class IN ('stock', 'etf', 'index', 'crypto', 'other')),
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS bar (
		bar_id      BIGSERIAL PRIMARY KEY,
		ticker      VARCHAR(16) NOT NULL REFERENCES instrument (ticker) ON DELETE CASCADE,
		bar_date    DATE NOT NULL,
		bar_time    CHAR(8) NOT NULL DEFAULT '00:00:00',
		timeframe   VARCHAR(16) NOT NULL,
		open_price  NUMERIC(15,6) NOT NULL,
		high_price  NUMERIC(15,6) NOT NULL,
		low_price   NUMERIC(15,6) NOT NULL,
		close_price NUMERIC(15,6) NOT NULL,
		volume      BIGINT NOT NULL DEFAULT 0 CHECK (volume >= 0),
		UNIQUE (ticker, bar_date, bar_time, timeframe)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bar_lookup ON bar (ticker, timeframe, bar_date)`,
	`CREATE TABLE IF NOT EXISTS backtest_run (
		run_id                BIGSERIAL PRIMARY KEY,
		description           TEXT,
		ticker                VARCHAR(16) NOT NULL REFERENCES instrument (ticker) ON DELETE CASCADE,
		strategy_name         VARCHAR(64) NOT NULL,
		strategy_parameters   TEXT,
		start_date            TIMESTAMPTZ NOT NULL,
		end_date              TIMESTAMPTZ NOT NULL,
		duration              BIGINT,
		exposure_time_pct     NUMERIC(18,4),
		equity_final          NUMERIC(18,4),
		equity_peak           NUMERIC(18,4),
		return_pct            NUMERIC(18,4),
		buy_hold_return_pct   NUMERIC(18,4),
		annual_return_pct     NUMERIC(18,4),
		annual_volatility_pct NUMERIC(18,4),
		sharpe_ratio          NUMERIC(18,4),
		sortino_ratio         NUMERIC(18,4),
		calmar_ratio          NUMERIC(18,4),
		max_drawdown_pct      NUMERIC(18,4),
		avg_drawdown_pct      NUMERIC(18,4),
		max_drawdown_duration BIGINT,
		avg_drawdown_duration BIGINT,
		total_trades          INTEGER NOT NULL DEFAULT 0,
		win_rate_pct          NUMERIC(18,4),
		best_trade_pct        NUMERIC(18,4),
		worst_trade_pct       NUMERIC(18,4),
		avg_trade_pct         NUMERIC(18,4),
		max_trade_duration    BIGINT,
		avg_trade_duration    BIGINT,
		profit_factor         NUMERIC(18,4),
		expectancy_pct        NUMERIC(18,4),
		sqn                   NUMERIC(18,4),
		created_at            TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_backtest_run_ticker ON backtest_run (ticker)`,
	`CREATE TABLE IF NOT EXISTS trade_detail (
		detail_id          BIGSERIAL PRIMARY KEY,
		run_id             BIGINT NOT NULL REFERENCES backtest_run (run_id) ON DELETE CASCADE,
		trade_number       INTEGER NOT NULL CHECK (trade_number > 0),
		buy_date           DATE NOT NULL,
		buy_time           CHAR(8) NOT NULL,
		sell_date          DATE NOT NULL,
		sell_time          CHAR(8) NOT NULL,
		buy_price          NUMERIC(15,6) NOT NULL,
		sell_price         NUMERIC(15,6) NOT NULL,
		position_size      BIGINT NOT NULL CHECK (position_size > 0),
		trade_duration     BIGINT,
		trade_return_pct   NUMERIC(18,4),
		profit_loss        NUMERIC(18,4),
		equity_after_trade NUMERIC(18,4),
		UNIQUE (run_id, trade_number)
	)`,
}
