package dynamo

import "github.com/jacentio/murmur/model"

// Config holds configuration for the DynamoDB backend.
type Config struct {
	// TablePrefix is prepended to the default entity table names
	// ("accounts", "posts", "comments", "notifications").
	// Default: "murmur_"
	TablePrefix string

	// Tables overrides the table name of individual kinds.
	Tables map[model.Kind]string

	// UniqueTable is the name of the unique constraints table.
	// Default: "murmur_unique_constraints"
	UniqueTable string

	// Indexes names global secondary indexes keyed by a single attribute.
	// Find uses Query on a matching index for its first equality condition
	// and falls back to Scan otherwise.
	Indexes []Index
}

// Index describes a GSI whose hash key is Field.
type Index struct {
	Kind  model.Kind
	Field string
	Name  string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		TablePrefix: "murmur_",
		UniqueTable: "murmur_unique_constraints",
		Indexes: []Index{
			{Kind: model.KindPost, Field: "user", Name: "user-index"},
			{Kind: model.KindComment, Field: "post", Name: "post-index"},
			{Kind: model.KindNotification, Field: "to", Name: "to-index"},
		},
	}
}

// TableName returns the table holding kind.
func (c Config) TableName(kind model.Kind) string {
	if name, ok := c.Tables[kind]; ok && name != "" {
		return name
	}
	schema, err := model.SchemaFor(kind)
	if err != nil {
		return ""
	}
	return c.TablePrefix + schema.Table
}

// index returns the GSI for an equality lookup on kind.field.
func (c Config) index(kind model.Kind, field string) (string, bool) {
	for _, idx := range c.Indexes {
		if idx.Kind == kind && idx.Field == field {
			return idx.Name, true
		}
	}
	return "", false
}

// validate ensures config values are usable.
func (c *Config) validate() {
	if c.TablePrefix == "" && len(c.Tables) == 0 {
		c.TablePrefix = "murmur_"
	}
	if c.UniqueTable == "" {
		c.UniqueTable = "murmur_unique_constraints"
	}
}
