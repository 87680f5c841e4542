package contact

import (
	"context"
	"database/sql"
	"errors"

	"sms-console/internal/model"
	"sms-console/pkg/db"
	"sms-console/pkg/metrics"

	"github.com/go-sql-driver/mysql"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

const (
	mysqlDuplicateEntry = 1062
	mysqlMissingParent  = 1452
)

type Store struct {
	db *db.DB
}

func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

func translate(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case mysqlDuplicateEntry:
			return ErrDuplicate
		case mysqlMissingParent:
			return ErrNotFound
		}
	}
	return err
}

func (s *Store) CreateContact(ctx context.Context, c model.Contact) (int64, error) {
	const query = `INSERT INTO contacts (name, phone, email) VALUES (?, ?, ?)`
	var id int64
	execFn := metrics.DBExecObserver("insert_contact", func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, query, c.Name, c.Phone, c.Email)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err := execFn(ctx); err != nil {
		return 0, translate(err)
	}
	return id, nil
}

func (s *Store) ListContacts(ctx context.Context) ([]model.Contact, error) {
	const query = `SELECT id, name, phone, email, created_at FROM contacts ORDER BY name ASC, id ASC`
	contacts := []model.Contact{}
	queryFn := metrics.DBExecObserver("select_contacts", func(c context.Context) error {
		return s.db.SelectContext(c, &contacts, query)
	})
	if err := queryFn(ctx); err != nil {
		return nil, err
	}
	return contacts, nil
}

func (s *Store) GetContact(ctx context.Context, id int64) (model.Contact, error) {
	const query = `SELECT id, name, phone, email, created_at FROM contacts WHERE id = ?`
	var c model.Contact
	queryFn := metrics.DBExecObserver("select_contact", func(ctx context.Context) error {
		return s.db.GetContext(ctx, &c, query, id)
	})
	if err := queryFn(ctx); err != nil {
		return model.Contact{}, translate(err)
	}
	return c, nil
}

func (s *Store) UpdateContact(ctx context.Context, c model.Contact) error {
	const query = `UPDATE contacts SET name = ?, phone = ?, email = ? WHERE id = ?`
	return s.execOne(ctx, "update_contact", query, c.Name, c.Phone, c.Email, c.ID)
}

func (s *Store) DeleteContact(ctx context.Context, id int64) error {
	return s.execOne(ctx, "delete_contact", `DELETE FROM contacts WHERE id = ?`, id)
}

func (s *Store) CreateGroup(ctx context.Context, g model.Group) (int64, error) {
	const query = `INSERT INTO contact_groups (name, description) VALUES (?, ?)`
	var id int64
	execFn := metrics.DBExecObserver("insert_group", func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, query, g.Name, g.Description)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err := execFn(ctx); err != nil {
		return 0, translate(err)
	}
	return id, nil
}

func (s *Store) ListGroups(ctx context.Context) ([]model.Group, error) {
	const query = `SELECT id, name, description, created_at FROM contact_groups ORDER BY name ASC`
	groups := []model.Group{}
	queryFn := metrics.DBExecObserver("select_groups", func(c context.Context) error {
		return s.db.SelectContext(c, &groups, query)
	})
	if err := queryFn(ctx); err != nil {
		return nil, err
	}
	return groups, nil
}

// GetGroup loads a group together with its members.
func (s *Store) GetGroup(ctx context.Context, id int64) (model.Group, error) {
	const groupQuery = `SELECT id, name, description, created_at FROM contact_groups WHERE id = ?`
	const membersQuery = `
		SELECT c.id, c.name, c.phone, c.email, c.created_at
		FROM contacts c
		JOIN contact_group_members m ON m.contact_id = c.id
		WHERE m.group_id = ?
		ORDER BY c.name ASC, c.id ASC
	`

	var g model.Group
	queryFn := metrics.DBExecObserver("select_group", func(c context.Context) error {
		if err := s.db.GetContext(c, &g, groupQuery, id); err != nil {
			return err
		}
		g.Members = []model.Contact{}
		return s.db.SelectContext(c, &g.Members, membersQuery, id)
	})
	if err := queryFn(ctx); err != nil {
		return model.Group{}, translate(err)
	}
	return g, nil
}

func (s *Store) DeleteGroup(ctx context.Context, id int64) error {
	return s.execOne(ctx, "delete_group", `DELETE FROM contact_groups WHERE id = ?`, id)
}

// AddMember is idempotent: adding an existing member is not an error.
func (s *Store) AddMember(ctx context.Context, groupID, contactID int64) error {
	const query = `
		INSERT INTO contact_group_members (group_id, contact_id) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE group_id = group_id
	`
	execFn := metrics.DBExecObserver("insert_group_member", func(c context.Context) error {
		_, err := s.db.ExecContext(c, query, groupID, contactID)
		return err
	})
	return translate(execFn(ctx))
}

func (s *Store) RemoveMember(ctx context.Context, groupID, contactID int64) error {
	return s.execOne(ctx, "delete_group_member",
		`DELETE FROM contact_group_members WHERE group_id = ? AND contact_id = ?`, groupID, contactID)
}

// execOne runs a statement that must touch exactly one row.
func (s *Store) execOne(ctx context.Context, name, query string, args ...any) error {
	execFn := metrics.DBExecObserver(name, func(c context.Context) error {
		res, err := s.db.ExecContext(c, query, args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return sql.ErrNoRows
		}
		return nil
	})
	return translate(execFn(ctx))
}
