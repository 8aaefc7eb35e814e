// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlbuilder

import (
	"context"
	"database/sql"
	"runtime"
	"sync"
	"sync/atomic"
)

// dbIDCount is used to generate unique DB IDs.
var dbIDCount uint64

type dbID = uint64

// maxCachedStatements bounds the number of prepared statements kept per
// database. Statements rendered past the bound are run unprepared.
const maxCachedStatements = 256

// statementCache caches the sql.Stmt objects prepared for rendered SQL text on
// each DB. The cache is indexed by the DB ID and the SQL text.
//
// A finalizer is set on DB objects to close all statements prepared on the DB,
// close the DB, and remove references to the DB from the cache.
//
// The mutex must be locked when accessing dbStmtCache.
type statementCache struct {
	dbStmtCache map[dbID]map[string]*sql.Stmt
	mutex       sync.RWMutex
}

var once sync.Once
var singleStmtCache *statementCache

// newStatementCache returns the single instance of the statement cache.
func newStatementCache() *statementCache {
	once.Do(func() {
		singleStmtCache = &statementCache{
			dbStmtCache: map[dbID]map[string]*sql.Stmt{},
		}
	})
	return singleStmtCache
}

// newDB returns a new DB and allocates it in the cache. A finalizer is set on
// the DB which removes it from the cache, closes all sql.Stmt values prepared
// upon it and then closes the sql.DB. The finalizer is run after the DB is
// garbage collected.
func (sc *statementCache) newDB(sqldb *sql.DB, opts options) *DB {
	cacheID := atomic.AddUint64(&dbIDCount, 1)
	sc.mutex.Lock()
	sc.dbStmtCache[cacheID] = map[string]*sql.Stmt{}
	sc.mutex.Unlock()
	db := &DB{sqldb: sqldb, cacheID: cacheID, opts: opts}
	runtime.SetFinalizer(db, sc.getDBFinalizer(db))
	return db
}

// lookupStmt checks if a statement for the SQL text has already been prepared
// on the DB.
func (sc *statementCache) lookupStmt(db *DB, query string) (*sql.Stmt, bool) {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()
	sqlstmt, ok := sc.dbStmtCache[db.cacheID][query]
	return sqlstmt, ok
}

// driverPrepareStmt prepares the SQL text on the DB and stores the sql.Stmt in
// the cache. It returns nil without error if the cache for the DB is full.
func (sc *statementCache) driverPrepareStmt(ctx context.Context, db *DB, query string) (*sql.Stmt, error) {
	sc.mutex.RLock()
	full := len(sc.dbStmtCache[db.cacheID]) >= maxCachedStatements
	sc.mutex.RUnlock()
	if full {
		return nil, nil
	}

	sqlstmt, err := db.sqldb.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	sc.mutex.Lock()
	defer sc.mutex.Unlock()
	// Check if a statement has been inserted by someone else since we last
	// checked.
	if sqlstmtAlt, ok := sc.dbStmtCache[db.cacheID][query]; ok {
		sqlstmt.Close()
		return sqlstmtAlt, nil
	}
	sc.dbStmtCache[db.cacheID][query] = sqlstmt
	return sqlstmt, nil
}

// getDBFinalizer returns a finalizer that closes and removes from the cache
// all sql.Stmt values prepared on the database, removes the database from the
// cache, then closes the sql.DB.
func (sc *statementCache) getDBFinalizer(db *DB) func(*DB) {
	return func(db *DB) {
		sc.mutex.Lock()
		defer sc.mutex.Unlock()
		for _, sqlstmt := range sc.dbStmtCache[db.cacheID] {
			sqlstmt.Close()
		}
		delete(sc.dbStmtCache, db.cacheID)
		db.sqldb.Close()
	}
}
