package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"sort"
	"strings"

	duckdb "github.com/duckdb/duckdb-go/v2"

	"github.com/rushteam/playrec/core"
	"github.com/rushteam/playrec/vector"
)

// DuckDB 是基于 DuckDB 的 core.PlayStore。
//
// 表结构：
//   - users(user_id)
//   - games(item_id, name, vector)：vector 为文本字面量（{..} 或 [..]）
//   - user_items(user_id, item_id, playtime_forever, playtime_2weeks)
//   - user_play_ratio(user_id, ratio DOUBLE[])
//   - derived_vectors(kind, entity_id, vec DOUBLE[])
type DuckDB struct {
	db *sql.DB
}

const duckdbSchema = `
CREATE TABLE IF NOT EXISTS users (
	user_id VARCHAR PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS games (
	item_id VARCHAR PRIMARY KEY,
	name    VARCHAR,
	vector  VARCHAR
);
CREATE TABLE IF NOT EXISTS user_items (
	user_id          VARCHAR NOT NULL,
	item_id          VARCHAR NOT NULL,
	playtime_forever BIGINT NOT NULL DEFAULT 0 CHECK (playtime_forever >= 0),
	playtime_2weeks  BIGINT NOT NULL DEFAULT 0 CHECK (playtime_2weeks >= 0),
	PRIMARY KEY (user_id, item_id)
);
CREATE TABLE IF NOT EXISTS user_play_ratio (
	user_id VARCHAR PRIMARY KEY,
	ratio   DOUBLE[]
);
CREATE TABLE IF NOT EXISTS derived_vectors (
	kind      VARCHAR NOT NULL,
	entity_id VARCHAR NOT NULL,
	vec       DOUBLE[],
	PRIMARY KEY (kind, entity_id)
);
`

// NewDuckDB 打开（或创建）DuckDB 数据库并初始化表结构；dsn 为空或 ":memory:" 时使用内存库。
func NewDuckDB(ctx context.Context, dsn string) (*DuckDB, error) {
	if dsn == ":memory:" {
		dsn = ""
	}
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, core.NewUnavailable(core.ModuleStore, "store: duckdb open", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, core.NewUnavailable(core.ModuleStore, "store: duckdb ping", err)
	}
	d := NewDuckDBFromDB(db)
	if err := d.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return d, nil
}

// NewDuckDBFromDB 使用已打开的连接（表结构需已存在或随后调用 Migrate）。
func NewDuckDBFromDB(db *sql.DB) *DuckDB {
	return &DuckDB{db: db}
}

// Migrate 创建缺失的表。
func (d *DuckDB) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(duckdbSchema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return storeError("schema", err)
		}
	}
	return nil
}

func (d *DuckDB) Name() string { return "duckdb" }

// storeError 按驱动错误类型归类：连接、网络、IO 类故障与连接已关闭记为 UNAVAILABLE，
// 约束冲突记为 INVALID_INPUT，其余（SQL、类型转换等）记为 INTERNAL_ERROR。
func storeError(op string, err error) error {
	msg := "store: duckdb " + op
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) {
		return core.NewUnavailable(core.ModuleStore, msg, err)
	}
	var de *duckdb.Error
	if errors.As(err, &de) {
		switch de.Type {
		case duckdb.ErrorTypeConnection, duckdb.ErrorTypeNetwork, duckdb.ErrorTypeIO,
			duckdb.ErrorTypeFatal, duckdb.ErrorTypeOutOfMemory, duckdb.ErrorTypeInterrupt:
			return core.NewUnavailable(core.ModuleStore, msg, err)
		case duckdb.ErrorTypeConstraint:
			return core.WrapDomainError(core.ModuleStore, core.ErrorCodeInvalidInput, msg, err)
		}
	}
	return core.WrapDomainError(core.ModuleStore, core.ErrorCodeInternalError, msg, err)
}

// AddUser 写入用户。
func (d *DuckDB) AddUser(ctx context.Context, userID string) error {
	_, err := d.db.ExecContext(ctx, `INSERT INTO users (user_id) VALUES (?) ON CONFLICT DO NOTHING`, userID)
	if err != nil {
		return storeError("insert user", err)
	}
	return nil
}

// AddGame 写入或覆盖物品；rawVector 以文本字面量保存。
func (d *DuckDB) AddGame(ctx context.Context, g Game) error {
	var literal any
	switch v := g.RawVector.(type) {
	case nil:
	case string:
		literal = v
	default:
		vec, err := vector.Normalize(v)
		if err != nil {
			return err
		}
		literal = vector.Format(vec, vector.StyleBrace)
	}
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO games (item_id, name, vector) VALUES (?, ?, ?)
		ON CONFLICT (item_id) DO UPDATE SET name = excluded.name, vector = excluded.vector`,
		g.ItemID, g.Name, literal)
	if err != nil {
		return storeError("insert game", err)
	}
	return nil
}

// AddPlay 写入或覆盖一条游玩记录，并隐式注册用户；负的游玩时长返回 INVALID_INPUT。
func (d *DuckDB) AddPlay(ctx context.Context, rec core.PlayRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if err := d.AddUser(ctx, rec.UserID); err != nil {
		return err
	}
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO user_items (user_id, item_id, playtime_forever, playtime_2weeks) VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, item_id) DO UPDATE SET
			playtime_forever = excluded.playtime_forever,
			playtime_2weeks = excluded.playtime_2weeks`,
		rec.UserID, rec.ItemID, rec.PlaytimeForever, rec.Playtime2Weeks)
	if err != nil {
		return storeError("insert play", err)
	}
	return nil
}

func (d *DuckDB) HasUser(ctx context.Context, userID string) (bool, error) {
	var ok bool
	err := d.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM users WHERE user_id = ?)
		    OR EXISTS (SELECT 1 FROM user_items WHERE user_id = ?)`,
		userID, userID).Scan(&ok)
	if err != nil {
		return false, storeError("has user", err)
	}
	return ok, nil
}

func (d *DuckDB) UserIDs(ctx context.Context) ([]string, error) {
	return d.queryStrings(ctx, "user ids", `
		SELECT user_id FROM users
		UNION
		SELECT user_id FROM user_items
		ORDER BY 1`)
}

func (d *DuckDB) ItemOrder(ctx context.Context) ([]string, error) {
	return d.queryStrings(ctx, "item order", `SELECT DISTINCT item_id FROM user_items ORDER BY item_id`)
}

func (d *DuckDB) queryStrings(ctx context.Context, op, query string, args ...any) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeError(op, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, storeError(op, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError(op, err)
	}
	return out, nil
}

// userItemsSQL 选出用户的物品；user_count 为全局去重用户数。
const userItemsSQL = `
	SELECT ui.item_id, COALESCE(g.name, ''), g.vector,
	       ui.playtime_forever, ui.playtime_2weeks,
	       (SELECT COUNT(DISTINCT u2.user_id) FROM user_items u2 WHERE u2.item_id = ui.item_id) AS user_count
	FROM user_items ui
	LEFT JOIN games g ON g.item_id = ui.item_id
	WHERE ui.user_id = ?`

func orderClause(order core.Order) string {
	switch order {
	case core.OrderCombined:
		return ` ORDER BY (ui.playtime_forever + ui.playtime_2weeks) DESC, ui.item_id ASC`
	case core.OrderPopularity:
		return ` ORDER BY user_count DESC, ui.item_id ASC`
	default:
		return ` ORDER BY ui.playtime_forever DESC, ui.playtime_2weeks DESC, ui.item_id ASC`
	}
}

func (d *DuckDB) TopItemsByPlaytime(ctx context.Context, userID string, k int, order core.Order) ([]core.Row, error) {
	query := userItemsSQL + orderClause(order)
	args := []any{userID}
	if k >= 0 {
		query += ` LIMIT ?`
		args = append(args, k)
	}
	return d.queryRows(ctx, "top items", query, args...)
}

func (d *DuckDB) UserItems(ctx context.Context, userID string) ([]core.Row, error) {
	return d.queryRows(ctx, "user items", userItemsSQL+` ORDER BY ui.item_id`, userID)
}

func (d *DuckDB) PlayRecords(ctx context.Context, userID string) ([]core.PlayRecord, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT ui.user_id, ui.item_id, COALESCE(g.name, ''), ui.playtime_forever, ui.playtime_2weeks
		FROM user_items ui LEFT JOIN games g ON g.item_id = ui.item_id
		WHERE ui.user_id = ?
		ORDER BY ui.item_id`, userID)
	if err != nil {
		return nil, storeError("play records", err)
	}
	defer rows.Close()

	var out []core.PlayRecord
	for rows.Next() {
		var r core.PlayRecord
		if err := rows.Scan(&r.UserID, &r.ItemID, &r.Name, &r.PlaytimeForever, &r.Playtime2Weeks); err != nil {
			return nil, storeError("play records", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("play records", err)
	}
	return out, nil
}

// catalogSQL 汇总物品的总时长与去重用户数；%s 为可选的过滤条件。
const catalogSQL = `
	SELECT g.item_id, COALESCE(g.name, ''), g.vector,
	       CAST(COALESCE(SUM(ui.playtime_forever), 0) AS BIGINT),
	       CAST(COALESCE(SUM(ui.playtime_2weeks), 0) AS BIGINT),
	       COUNT(DISTINCT ui.user_id)
	FROM games g
	%s JOIN user_items ui ON ui.item_id = g.item_id %s
	%s
	GROUP BY g.item_id, g.name, g.vector
	ORDER BY g.item_id`

func (d *DuckDB) AllItemVectors(ctx context.Context) ([]core.Row, error) {
	return d.queryRows(ctx, "all items", fmt.Sprintf(catalogSQL, "LEFT", "", ""))
}

func (d *DuckDB) ItemsByIDs(ctx context.Context, ids []string) ([]core.Row, error) {
	if len(ids) == 0 {
		return []core.Row{}, nil
	}
	where := "WHERE g.item_id IN (" + placeholders(len(ids)) + ")"
	return d.queryRows(ctx, "items by ids", fmt.Sprintf(catalogSQL, "LEFT", "", where), toArgs(ids)...)
}

func (d *DuckDB) CohortItems(ctx context.Context, userIDs []string) ([]core.Row, error) {
	if len(userIDs) == 0 {
		return []core.Row{}, nil
	}
	on := "AND ui.user_id IN (" + placeholders(len(userIDs)) + ")"
	return d.queryRows(ctx, "cohort items", fmt.Sprintf(catalogSQL, "INNER", on, ""), toArgs(userIDs)...)
}

func (d *DuckDB) queryRows(ctx context.Context, op, query string, args ...any) ([]core.Row, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeError(op, err)
	}
	defer rows.Close()

	out := []core.Row{}
	for rows.Next() {
		var (
			r   core.Row
			raw any
		)
		if err := rows.Scan(&r.ItemID, &r.Name, &raw, &r.PlaytimeForever, &r.Playtime2Weeks, &r.UserCount); err != nil {
			return nil, storeError(op, err)
		}
		r.RawVector = raw
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError(op, err)
	}
	return out, nil
}

func (d *DuckDB) NeighborUserIDs(ctx context.Context, userID string, k int) ([]string, error) {
	var exists bool
	err := d.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM user_play_ratio WHERE user_id = ? AND ratio IS NOT NULL)`, userID).Scan(&exists)
	if err != nil {
		return nil, storeError("neighbors", err)
	}
	if !exists {
		return nil, core.NewInsufficientData(core.ModuleStore, "store: no play-ratio vector for user %s", userID)
	}

	// 零向量的余弦相似度为 NaN，按 0 处理
	query := `
		WITH target AS (SELECT ratio FROM user_play_ratio WHERE user_id = ?),
		scored AS (
			SELECT r.user_id, list_cosine_similarity(r.ratio, t.ratio) AS sim
			FROM user_play_ratio r, target t
			WHERE r.user_id <> ? AND len(r.ratio) = len(t.ratio)
		)
		SELECT user_id FROM scored
		ORDER BY CASE WHEN sim IS NULL OR isnan(sim) THEN 0 ELSE sim END DESC, user_id ASC`
	args := []any{userID, userID}
	if k >= 0 {
		query += ` LIMIT ?`
		args = append(args, k)
	}
	return d.queryStrings(ctx, "neighbors", query, args...)
}

func (d *DuckDB) UpsertDerivedVector(ctx context.Context, kind core.DerivedKind, entityID string, vec []float64) error {
	return d.UpsertDerivedVectors(ctx, kind, map[string][]float64{entityID: vec})
}

// UpsertDerivedVectors 在一个事务内写入一批向量，失败时整批回滚。
func (d *DuckDB) UpsertDerivedVectors(ctx context.Context, kind core.DerivedKind, vecs map[string][]float64) (err error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return storeError("begin", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var stmt *sql.Stmt
	if kind == core.DerivedPlayRatio {
		stmt, err = tx.PrepareContext(ctx, `
			INSERT INTO user_play_ratio (user_id, ratio) VALUES (?, CAST(? AS DOUBLE[]))
			ON CONFLICT (user_id) DO UPDATE SET ratio = excluded.ratio`)
	} else {
		stmt, err = tx.PrepareContext(ctx, `
			INSERT INTO derived_vectors (kind, entity_id, vec) VALUES ('`+escapeLiteral(string(kind))+`', ?, CAST(? AS DOUBLE[]))
			ON CONFLICT (kind, entity_id) DO UPDATE SET vec = excluded.vec`)
	}
	if err != nil {
		return storeError("prepare upsert", err)
	}
	defer stmt.Close()

	ids := make([]string, 0, len(vecs))
	for id := range vecs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if _, err = stmt.ExecContext(ctx, id, vector.Format(vecs[id], vector.StyleBracket)); err != nil {
			return storeError("upsert derived", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return storeError("commit", err)
	}
	return nil
}

func (d *DuckDB) DerivedVector(ctx context.Context, kind core.DerivedKind, entityID string) ([]float64, error) {
	var raw any
	var err error
	if kind == core.DerivedPlayRatio {
		err = d.db.QueryRowContext(ctx, `SELECT ratio FROM user_play_ratio WHERE user_id = ?`, entityID).Scan(&raw)
	} else {
		err = d.db.QueryRowContext(ctx, `SELECT vec FROM derived_vectors WHERE kind = ? AND entity_id = ?`,
			string(kind), entityID).Scan(&raw)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrStoreNotFound
	}
	if err != nil {
		return nil, storeError("derived vector", err)
	}
	return vector.Normalize(raw)
}

// RatioUserIDs 返回已有游玩比例向量的用户（升序），用于断点续跑。
func (d *DuckDB) RatioUserIDs(ctx context.Context) ([]string, error) {
	return d.queryStrings(ctx, "ratio users", `SELECT user_id FROM user_play_ratio ORDER BY user_id`)
}

func (d *DuckDB) Close() error {
	return d.db.Close()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func toArgs(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func escapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

var (
	_ core.PlayStore         = (*DuckDB)(nil)
	_ core.BatchVectorWriter = (*DuckDB)(nil)
	_ core.VectorReader      = (*DuckDB)(nil)
)
