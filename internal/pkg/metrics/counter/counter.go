package counter

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/MemberGate/internal/pkg/cache"
	"github.com/ManuelReschke/MemberGate/internal/pkg/database"
)

const lessonViewsKey = "lesson:counters:views"

// AddLessonView increments the pending view counter for a lesson in Redis
func AddLessonView(lessonID uint) error {
	field := strconv.FormatUint(uint64(lessonID), 10)
	return cache.GetClient().HIncrBy(context.Background(), lessonViewsKey, field, 1).Err()
}

// FlushAll applies the pending lesson views to the write connection.
func FlushAll() error {
	db := database.GetWriteDB()
	if db == nil {
		return nil
	}
	return FlushTo(db)
}

// FlushTo drains the counters into db.
func FlushTo(db *gorm.DB) error {
	return flushHashToTable(db, lessonViewsKey, "lessons", "view_count")
}

// flushHashToTable drains a Redis hash atomically and applies batched increments.
// RENAME to a temporary key keeps increments arriving during the flush.
func flushHashToTable(db *gorm.DB, redisKey, table, column string) error {
	ctx := context.Background()
	rdb := cache.GetClient()

	tmpKey := fmt.Sprintf("%s:tmp:%d", redisKey, time.Now().UnixNano())
	if err := rdb.Rename(ctx, redisKey, tmpKey).Err(); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "no such key") {
			return nil
		}
		return err
	}
	defer rdb.Del(ctx, tmpKey)

	data, err := rdb.HGetAll(ctx, tmpKey).Result()
	if err != nil {
		return err
	}

	type pair struct {
		id  uint64
		inc int64
	}
	pairs := make([]pair, 0, len(data))
	for k, v := range data {
		id, perr := strconv.ParseUint(k, 10, 64)
		if perr != nil {
			continue
		}
		inc, ierr := strconv.ParseInt(v, 10, 64)
		if ierr != nil || inc == 0 {
			continue
		}
		pairs = append(pairs, pair{id: id, inc: inc})
	}
	if len(pairs) == 0 {
		return nil
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].id < pairs[j].id })

	// UPDATE t SET c = c + CASE id WHEN ? THEN ? ... END WHERE id IN (...)
	var builder strings.Builder
	args := make([]interface{}, 0, len(pairs)*3)
	fmt.Fprintf(&builder, "UPDATE %s SET %s = %s + CASE id", table, column, column)
	for _, p := range pairs {
		builder.WriteString(" WHEN ? THEN ?")
		args = append(args, p.id, p.inc)
	}
	builder.WriteString(" END WHERE id IN (")
	for i, p := range pairs {
		if i > 0 {
			builder.WriteString(",")
		}
		builder.WriteString("?")
		args = append(args, p.id)
	}
	builder.WriteString(")")

	return db.Exec(builder.String(), args...).Error
}
