package db

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"

	"minipub/domain"
)

// DB is the database struct.
type DB struct {
	db *sql.DB
}

const (
	// Actors: the self actor plus the soft cache of remote actors.
	// (domain, screen_name) is the upsert key; actor_uri is globally unique.
	sqlCreateActorsTable = `CREATE TABLE IF NOT EXISTS actors(
                        id uuid NOT NULL PRIMARY KEY,
                        screen_name varchar(100) NOT NULL,
                        domain varchar(255) NOT NULL,
                        display_name varchar(255),
                        icon_url varchar(500),
                        public_key_pem text,
                        actor_uri varchar(500) UNIQUE,
                        inbox_uri varchar(500),
                        created_at timestamp default current_timestamp,
                        UNIQUE(domain, screen_name)
                        )`

	sqlUpsertActor = `INSERT INTO actors(id, screen_name, domain, display_name, icon_url, public_key_pem, actor_uri, inbox_uri, created_at)
                        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
                        ON CONFLICT(domain, screen_name) DO UPDATE SET
                            display_name = excluded.display_name,
                            icon_url = excluded.icon_url,
                            public_key_pem = excluded.public_key_pem,
                            actor_uri = excluded.actor_uri,
                            inbox_uri = excluded.inbox_uri`

	sqlSelectActorColumns = `SELECT id, screen_name, domain, display_name, icon_url, public_key_pem, actor_uri, inbox_uri, created_at FROM actors`
	sqlSelectActorByName  = sqlSelectActorColumns + ` WHERE domain = ? AND screen_name = ?`
	sqlSelectActorByURI   = sqlSelectActorColumns + ` WHERE actor_uri = ?`
	sqlSelectActorById    = sqlSelectActorColumns + ` WHERE id = ?`

	// Follows: directed edges, one row per ordered pair. The composite
	// primary key is the only mutual-exclusion mechanism needed.
	sqlCreateFollowsTable = `CREATE TABLE IF NOT EXISTS follows(
                        follower_id uuid NOT NULL,
                        following_id uuid NOT NULL,
                        created_at timestamp default current_timestamp,
                        PRIMARY KEY(follower_id, following_id)
                        )`

	sqlUpsertFollow = `INSERT INTO follows(follower_id, following_id, created_at) VALUES (?, ?, ?)
                        ON CONFLICT(follower_id, following_id) DO NOTHING`
	sqlDeleteFollow = `DELETE FROM follows WHERE follower_id = ? AND following_id = ?`

	sqlCountFollowers = `SELECT count(*) FROM follows WHERE following_id = ?`
	sqlCountFollowing = `SELECT count(*) FROM follows WHERE follower_id = ?`

	sqlSelectFollowers = sqlSelectActorColumns + `
                        INNER JOIN follows ON follows.follower_id = actors.id
                        WHERE follows.following_id = ?
                        ORDER BY follows.created_at DESC`
	sqlSelectFollowing = sqlSelectActorColumns + `
                        INNER JOIN follows ON follows.following_id = actors.id
                        WHERE follows.follower_id = ?
                        ORDER BY follows.created_at DESC`

	// Posts
	sqlCreatePostsTable = `CREATE TABLE IF NOT EXISTS posts(
                        id uuid NOT NULL PRIMARY KEY,
                        author_id uuid NOT NULL,
                        content text NOT NULL,
                        posted_at timestamp NOT NULL
                        )`

	sqlInsertPost = `INSERT INTO posts(id, author_id, content, posted_at) VALUES (?, ?, ?, ?)`

	sqlSelectPostColumns = `SELECT posts.id, posts.author_id, actors.screen_name, posts.content, posts.posted_at FROM posts
                        INNER JOIN actors ON actors.id = posts.author_id`
	sqlSelectPostsByAuthor = sqlSelectPostColumns + `
                        WHERE posts.author_id = ?
                        ORDER BY posts.posted_at DESC`
	sqlSelectRecentPosts = sqlSelectPostColumns + `
                        ORDER BY posts.posted_at DESC
                        LIMIT ?`

	sqlCreateIndices = `
                        CREATE INDEX IF NOT EXISTS idx_follows_following_id ON follows(following_id);
                        CREATE INDEX IF NOT EXISTS idx_posts_author_id ON posts(author_id);
                        CREATE INDEX IF NOT EXISTS idx_posts_posted_at ON posts(posted_at DESC);
                        `
)

// Open opens (creating if necessary) the sqlite database at path.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	var journalMode string
	if err := sqlDB.QueryRow("PRAGMA journal_mode=WAL").Scan(&journalMode); err != nil {
		log.Printf("Warning: Failed to enable WAL mode: %v", err)
	}

	sqlDB.Exec("PRAGMA synchronous = NORMAL")
	sqlDB.Exec("PRAGMA busy_timeout = 5000")
	sqlDB.Exec("PRAGMA foreign_keys = ON")

	database := &DB{db: sqlDB}
	if err := database.createSchema(); err != nil {
		return nil, err
	}

	return database, nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

func (db *DB) createSchema() error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		for _, stmt := range []string{sqlCreateActorsTable, sqlCreateFollowsTable, sqlCreatePostsTable} {
			if _, err := tx.Exec(stmt); err != nil {
				return err
			}
		}
		if _, err := tx.Exec(sqlCreateIndices); err != nil {
			log.Printf("Warning: Failed to create indices: %v", err)
		}
		return nil
	})
}

// UpsertActor creates or refreshes an actor keyed by (domain, screen_name)
// and returns the stored row. Mutable profile fields are overwritten on
// every call; the row id and created_at survive.
func (db *DB) UpsertActor(actor *domain.Actor) (error, *domain.Actor) {
	id := actor.Id
	if id == uuid.Nil {
		id = uuid.New()
	}
	createdAt := actor.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	err := db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpsertActor,
			id.String(),
			actor.ScreenName,
			actor.Domain,
			actor.DisplayName,
			actor.IconURL,
			actor.PublicKeyPem,
			actor.ActorURI,
			actor.InboxURI,
			createdAt,
		)
		return err
	})
	if err != nil {
		return err, nil
	}

	return db.ReadActorByName(actor.Domain, actor.ScreenName)
}

func (db *DB) ReadActorByName(domainName string, screenName string) (error, *domain.Actor) {
	return db.scanActor(db.db.QueryRow(sqlSelectActorByName, domainName, screenName))
}

func (db *DB) ReadActorByURI(actorURI string) (error, *domain.Actor) {
	return db.scanActor(db.db.QueryRow(sqlSelectActorByURI, actorURI))
}

func (db *DB) ReadActorById(id uuid.UUID) (error, *domain.Actor) {
	return db.scanActor(db.db.QueryRow(sqlSelectActorById, id.String()))
}

func (db *DB) scanActor(row *sql.Row) (error, *domain.Actor) {
	var actor domain.Actor
	var idStr string
	err := row.Scan(
		&idStr,
		&actor.ScreenName,
		&actor.Domain,
		&actor.DisplayName,
		&actor.IconURL,
		&actor.PublicKeyPem,
		&actor.ActorURI,
		&actor.InboxURI,
		&actor.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	actor.Id, _ = uuid.Parse(idStr)
	return nil, &actor
}

// UpsertFollow records a follow edge. Re-inserting an existing pair is a
// no-op, which makes re-delivered Follow/Accept activities harmless.
func (db *DB) UpsertFollow(followerId uuid.UUID, followingId uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpsertFollow, followerId.String(), followingId.String(), time.Now())
		return err
	})
}

// DeleteFollow removes a follow edge. Deleting a missing pair is a no-op.
func (db *DB) DeleteFollow(followerId uuid.UUID, followingId uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteFollow, followerId.String(), followingId.String())
		return err
	})
}

func (db *DB) CountFollowers(actorId uuid.UUID) (error, int) {
	var count int
	err := db.db.QueryRow(sqlCountFollowers, actorId.String()).Scan(&count)
	return err, count
}

func (db *DB) CountFollowing(actorId uuid.UUID) (error, int) {
	var count int
	err := db.db.QueryRow(sqlCountFollowing, actorId.String()).Scan(&count)
	return err, count
}

func (db *DB) ListFollowers(actorId uuid.UUID) (error, *[]domain.Actor) {
	return db.queryActors(sqlSelectFollowers, actorId)
}

func (db *DB) ListFollowing(actorId uuid.UUID) (error, *[]domain.Actor) {
	return db.queryActors(sqlSelectFollowing, actorId)
}

func (db *DB) queryActors(query string, actorId uuid.UUID) (error, *[]domain.Actor) {
	rows, err := db.db.Query(query, actorId.String())
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var actors []domain.Actor

	for rows.Next() {
		var actor domain.Actor
		var idStr string
		if err := rows.Scan(
			&idStr,
			&actor.ScreenName,
			&actor.Domain,
			&actor.DisplayName,
			&actor.IconURL,
			&actor.PublicKeyPem,
			&actor.ActorURI,
			&actor.InboxURI,
			&actor.CreatedAt,
		); err != nil {
			return err, &actors
		}
		actor.Id, _ = uuid.Parse(idStr)
		actors = append(actors, actor)
	}
	if err = rows.Err(); err != nil {
		return err, &actors
	}

	return nil, &actors
}

func (db *DB) CreatePost(authorId uuid.UUID, content string, postedAt time.Time) (error, *domain.Post) {
	post := &domain.Post{
		Id:       uuid.New(),
		AuthorId: authorId,
		Content:  content,
		PostedAt: postedAt,
	}
	err := db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertPost, post.Id.String(), post.AuthorId.String(), post.Content, post.PostedAt)
		return err
	})
	if err != nil {
		return err, nil
	}
	return nil, post
}

func (db *DB) ReadPostsByAuthor(authorId uuid.UUID) (error, *[]domain.Post) {
	return db.queryPosts(sqlSelectPostsByAuthor, authorId.String())
}

func (db *DB) ReadRecentPosts(limit int) (error, *[]domain.Post) {
	return db.queryPosts(sqlSelectRecentPosts, limit)
}

func (db *DB) queryPosts(query string, arg interface{}) (error, *[]domain.Post) {
	rows, err := db.db.Query(query, arg)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var posts []domain.Post

	for rows.Next() {
		var post domain.Post
		var idStr, authorIdStr string
		if err := rows.Scan(&idStr, &authorIdStr, &post.Author, &post.Content, &post.PostedAt); err != nil {
			return err, &posts
		}
		post.Id, _ = uuid.Parse(idStr)
		post.AuthorId, _ = uuid.Parse(authorIdStr)
		posts = append(posts, post)
	}
	if err = rows.Err(); err != nil {
		return err, &posts
	}

	return nil, &posts
}

// wrapTransaction runs the given function within a transaction.
func (db *DB) wrapTransaction(f func(tx *sql.Tx) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		log.Printf("error starting transaction: %s", err)
		return err
	}
	for {
		err = f(tx)
		if err != nil {
			serr, ok := err.(*sqlite.Error)
			if ok && serr.Code() == sqlitelib.SQLITE_BUSY {
				continue
			}
			tx.Rollback()
			log.Printf("error in transaction: %s", err)
			return err
		}
		err = tx.Commit()
		if err != nil {
			log.Printf("error committing transaction: %s", err)
			return err
		}
		break
	}
	return nil
}
