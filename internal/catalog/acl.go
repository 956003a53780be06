package catalog

import "fmt"

// GrantACL inserts one ACL row for (user, product).
func (c *Catalog) GrantACL(a *ACL) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch a.AccessType {
	case AccessFull, AccessIndex, AccessDocument, AccessField:
	default:
		return 0, fmt.Errorf("grant acl: unknown access type %q", a.AccessType)
	}

	res, err := c.db.Exec(`
		INSERT INTO acls (user_id, product_id, access_type, index_scope, doc_scope, field_scope)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.UserID, a.ProductID, string(a.AccessType), a.IndexScope, a.DocScope, a.FieldScope)
	if err != nil {
		return 0, fmt.Errorf("grant acl: %w", err)
	}
	id, _ := res.LastInsertId()
	a.ID = id
	return id, nil
}

// ListACLs returns a user's ACLs on one product, in grant order.
func (c *Catalog) ListACLs(userID string, productID int64) ([]ACL, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows, err := c.db.Query(`
		SELECT id, user_id, product_id, access_type, index_scope, doc_scope, field_scope
		FROM acls WHERE user_id = ? AND product_id = ?
		ORDER BY id`, userID, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ACL
	for rows.Next() {
		var a ACL
		var access string
		if err := rows.Scan(&a.ID, &a.UserID, &a.ProductID, &access,
			&a.IndexScope, &a.DocScope, &a.FieldScope); err != nil {
			return nil, err
		}
		a.AccessType = AccessType(access)
		out = append(out, a)
	}
	return out, rows.Err()
}

// RevokeACL deletes one ACL row.
func (c *Catalog) RevokeACL(id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.db.Exec(`DELETE FROM acls WHERE id = ?`, id)
	return err
}
