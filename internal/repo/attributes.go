package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// The requested language wins; otherwise any translation is used.
const attributeGroupNameSQL = `SELECT name FROM attribute_groups_info
WHERE group_id = $1
ORDER BY (language_code = $2) DESC, language_code
LIMIT 1`

// AttributeGroups resolves option group names. It implements
// eligibility.CatalogLookup.
type AttributeGroups struct {
	DB DBTX
}

func (a AttributeGroups) AttributeGroupName(ctx context.Context, groupID, language string) (string, error) {
	id, err := parseID(groupID)
	if err != nil {
		return "", err
	}
	var name string
	err = a.DB.QueryRow(ctx, attributeGroupNameSQL, id, language).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("attribute group %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("attribute group %d lookup: %w", id, err)
	}
	return name, nil
}
