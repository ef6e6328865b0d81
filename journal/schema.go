package journal

// Schema is applied on every open. Child rows carry ord to keep the
// session's slice order.
const Schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	schema_version INTEGER NOT NULL,
	symbol TEXT NOT NULL,
	name TEXT NOT NULL,
	initial_capital REAL NOT NULL,
	current_capital REAL NOT NULL,
	start_date DATETIME NOT NULL,
	end_date DATETIME NOT NULL,
	period_days INTEGER NOT NULL,
	practice_start_index INTEGER NOT NULL,
	practice_start_date DATETIME,
	current_day INTEGER NOT NULL,
	status TEXT NOT NULL,
	playback_speed_ns INTEGER NOT NULL,
	ma_periods TEXT NOT NULL,
	trade_count INTEGER NOT NULL,
	win_count INTEGER NOT NULL,
	win_rate REAL NOT NULL,
	rule_violation_count INTEGER NOT NULL,
	max_drawdown REAL NOT NULL,
	peak_equity REAL NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	completed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_sessions_owner ON sessions(owner_id, created_at);

CREATE TABLE IF NOT EXISTS positions (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	ord INTEGER NOT NULL,
	type TEXT NOT NULL,
	trading_type TEXT NOT NULL,
	shares INTEGER NOT NULL,
	entry_price REAL NOT NULL,
	entry_date DATETIME NOT NULL,
	status TEXT NOT NULL,
	exit_price REAL,
	exit_date DATETIME,
	profit REAL,
	profit_rate REAL
);

CREATE TABLE IF NOT EXISTS trades (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	ord INTEGER NOT NULL,
	position_id TEXT NOT NULL,
	type TEXT NOT NULL,
	is_short INTEGER NOT NULL,
	trade_date DATETIME NOT NULL,
	price REAL NOT NULL,
	shares INTEGER NOT NULL,
	fee REAL NOT NULL,
	slippage REAL NOT NULL,
	total_cost REAL NOT NULL,
	memo TEXT NOT NULL,
	capital_after_trade REAL NOT NULL,
	seq INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS violations (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	ord INTEGER NOT NULL,
	timestamp DATETIME NOT NULL,
	position_id TEXT NOT NULL,
	type TEXT NOT NULL,
	description TEXT NOT NULL,
	severity TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_positions_session ON positions(session_id, ord);
CREATE INDEX IF NOT EXISTS idx_trades_session ON trades(session_id, ord);
CREATE INDEX IF NOT EXISTS idx_violations_session ON violations(session_id, ord);
`
