package repo

import (
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"posto-admin/internal/domain"
)

// applySort 解析 "field:dir,field2:dir"，只接受白名单中的字段
func applySort(q *gorm.DB, sort string, allowed map[string]string, fallback string) *gorm.DB {
	applied := false
	for _, part := range strings.Split(sort, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		field, dir, _ := strings.Cut(part, ":")
		col, ok := allowed[field]
		if !ok {
			continue
		}
		q = q.Order(clause.OrderByColumn{
			Column: clause.Column{Name: col},
			Desc:   !strings.EqualFold(dir, "asc"),
		})
		applied = true
	}
	if !applied {
		q = q.Order(fallback)
	}
	return q
}

func paginate(q *gorm.DB, p domain.Page) *gorm.DB {
	return q.Offset(p.Offset()).Limit(p.Limit)
}

// likeEscape 与 likePattern 配套；用 ! 做转义符，mysql 下反斜杠本身需要转义
const likeEscape = " ESCAPE '!'"

// likePattern 转义通配符，防止用户输入 % _
func likePattern(s string) string {
	r := strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`)
	return "%" + strings.ToLower(r.Replace(strings.TrimSpace(s))) + "%"
}
