package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sakif/campus-forum/internal/model"
	"github.com/sakif/campus-forum/internal/repository"
)

// Compile-time check that *DB implements the gateway interface.
var _ repository.Gateway = (*DB)(nil)

// LoadUsers reads the full user collection, notifications included, in the
// order it was saved.
func (db *DB) LoadUsers(ctx context.Context) ([]*model.User, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, kind, student_id, nickname, avatar_path, salt, password_hash,
		       registered_at, post_ids
		FROM users
		ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	byStudentID := make(map[string]*model.User)

	for rows.Next() {
		var u model.User
		var kind, postIDs string
		if err := rows.Scan(&u.ID, &kind, &u.StudentID, &u.Nickname, &u.AvatarPath,
			&u.Salt, &u.PasswordHash, &u.RegisteredAt, &postIDs); err != nil {
			return nil, fmt.Errorf("sqlite: scanning user: %w", err)
		}
		u.Kind = model.UserKind(kind)
		if postIDs != "" {
			u.PostIDs = strings.Split(postIDs, ",")
		}
		users = append(users, &u)
		byStudentID[u.StudentID] = &u
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}

	nrows, err := db.conn.QueryContext(ctx, `
		SELECT id, student_id, title, content, read, at
		FROM notifications
		ORDER BY student_id, seq
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading notifications: %w", err)
	}
	defer nrows.Close()

	for nrows.Next() {
		var n model.Notification
		var studentID string
		var read int
		if err := nrows.Scan(&n.ID, &studentID, &n.Title, &n.Content, &read, &n.At); err != nil {
			return nil, fmt.Errorf("sqlite: scanning notification: %w", err)
		}
		n.Read = read != 0
		if u, ok := byStudentID[studentID]; ok {
			u.Notifications = append(u.Notifications, &n)
		}
	}
	if err := nrows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating notifications: %w", err)
	}

	return users, nil
}

// SaveUsers replaces the stored user collection with the given snapshot
// inside a single transaction.
func (db *DB) SaveUsers(ctx context.Context, users []*model.User) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning user save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM notifications`); err != nil {
		return fmt.Errorf("sqlite: clearing notifications: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM users`); err != nil {
		return fmt.Errorf("sqlite: clearing users: %w", err)
	}

	for _, u := range users {
		if u == nil || u.StudentID == "" {
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, kind, student_id, nickname, avatar_path, salt,
			                   password_hash, registered_at, post_ids)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, u.ID, string(u.Kind), u.StudentID, u.Nickname, u.AvatarPath,
			u.Salt, u.PasswordHash, u.RegisteredAt, strings.Join(u.PostIDs, ","))
		if err != nil {
			return fmt.Errorf("sqlite: inserting user %s: %w", u.StudentID, err)
		}

		for seq, n := range u.Notifications {
			if n == nil {
				continue
			}
			read := 0
			if n.Read {
				read = 1
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO notifications (id, student_id, title, content, read, at, seq)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, n.ID, u.StudentID, n.Title, n.Content, read, n.At, seq)
			if err != nil {
				return fmt.Errorf("sqlite: inserting notification for %s: %w", u.StudentID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing user save: %w", err)
	}
	return nil
}

// LoadPosts reads the full post collection — likers and comments included —
// in saved order.
func (db *DB) LoadPosts(ctx context.Context) ([]*model.Post, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, author_id, title, body, category, status, created_at,
		       published_at, views
		FROM posts
		ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading posts: %w", err)
	}
	defer rows.Close()

	var posts []*model.Post
	byID := make(map[string]*model.Post)

	for rows.Next() {
		var p model.Post
		var category, status string
		var publishedAt sql.NullTime
		if err := rows.Scan(&p.ID, &p.AuthorID, &p.Title, &p.Body, &category,
			&status, &p.CreatedAt, &publishedAt, &p.Views); err != nil {
			return nil, fmt.Errorf("sqlite: scanning post: %w", err)
		}
		p.Category = model.PostCategory(category)
		p.Status = model.PostStatus(status)
		if publishedAt.Valid {
			p.PublishedAt = publishedAt.Time
		}
		posts = append(posts, &p)
		byID[p.ID] = &p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating posts: %w", err)
	}

	lrows, err := db.conn.QueryContext(ctx, `SELECT post_id, user_id FROM post_likers`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading likers: %w", err)
	}
	defer lrows.Close()

	likers := make(map[string][]string)
	for lrows.Next() {
		var postID, userID string
		if err := lrows.Scan(&postID, &userID); err != nil {
			return nil, fmt.Errorf("sqlite: scanning liker: %w", err)
		}
		likers[postID] = append(likers[postID], userID)
	}
	if err := lrows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating likers: %w", err)
	}
	for postID, userIDs := range likers {
		if p, ok := byID[postID]; ok {
			p.SetLikers(userIDs)
		}
	}

	crows, err := db.conn.QueryContext(ctx, `
		SELECT id, post_id, author_id, parent_id, body, created_at
		FROM comments
		ORDER BY post_id, seq
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading comments: %w", err)
	}
	defer crows.Close()

	for crows.Next() {
		var c model.Comment
		if err := crows.Scan(&c.ID, &c.PostID, &c.AuthorID, &c.ParentID,
			&c.Body, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning comment: %w", err)
		}
		if p, ok := byID[c.PostID]; ok {
			p.AddComment(&c)
		}
	}
	if err := crows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating comments: %w", err)
	}

	return posts, nil
}

// SavePosts replaces the stored post collection with the given snapshot
// inside a single transaction. The slice order (the post store's insertion
// order) is preserved via the seq column.
func (db *DB) SavePosts(ctx context.Context, posts []*model.Post) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning post save: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"comments", "post_likers", "posts"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("sqlite: clearing %s: %w", table, err)
		}
	}

	for seq, p := range posts {
		if p == nil || p.ID == "" {
			continue
		}
		var publishedAt any
		if !p.PublishedAt.IsZero() {
			publishedAt = p.PublishedAt
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO posts (id, author_id, title, body, category, status,
			                   created_at, published_at, views, seq)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, p.ID, p.AuthorID, p.Title, p.Body, string(p.Category), string(p.Status),
			p.CreatedAt, publishedAt, p.Views, seq)
		if err != nil {
			return fmt.Errorf("sqlite: inserting post %s: %w", p.ID, err)
		}

		for _, userID := range p.Likers() {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO post_likers (post_id, user_id) VALUES (?, ?)`,
				p.ID, userID)
			if err != nil {
				return fmt.Errorf("sqlite: inserting liker for %s: %w", p.ID, err)
			}
		}

		for cseq, c := range p.Comments {
			if c == nil {
				continue
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO comments (id, post_id, author_id, parent_id, body, created_at, seq)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, c.ID, p.ID, c.AuthorID, c.ParentID, c.Body, c.CreatedAt, cseq)
			if err != nil {
				return fmt.Errorf("sqlite: inserting comment for %s: %w", p.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing post save: %w", err)
	}
	return nil
}
