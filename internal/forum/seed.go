package forum

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/campus-forum/internal/model"
)

// ensureSeeded populates the demonstration fixture on the first access to
// an empty backing store. Runs at most once per process (and never when
// posts were loaded from the gateway) — interactions against seeded posts
// must survive later reads. Callers hold s.mu.
func (s *Service) ensureSeeded() {
	if s.seeded {
		return
	}
	s.seeded = true

	if len(s.posts) > 0 {
		return
	}

	now := time.Now()
	s.posts = append(s.posts,
		seededPost("Java多线程学习心得", "最近在学习Java多线程编程，分享一些心得体会...",
			"student_001", model.CategoryLearning, 150, 45, 23, now.Add(-2*time.Hour)),
		seededPost("校园篮球比赛通知", "本周五下午体育馆举行篮球比赛，欢迎大家参加！",
			"sports_committee", model.CategoryCampusLife, 320, 120, 56, now.Add(-5*time.Hour)),
		seededPost("转让二手笔记本电脑", "联想ThinkPad，9成新，配置：i7/16G/512G SSD",
			"student_2024", model.CategorySecondHand, 180, 65, 12, now.Add(-24*time.Hour)),
		seededPost("周末编程学习小组招募", "寻找对Java开发感兴趣的同学一起学习交流",
			"tech_group", model.CategoryActivity, 95, 32, 18, now.Add(-48*time.Hour)),
		seededPost("关于宿舍网络的问题", "最近宿舍网络不太稳定，有相同情况的同学吗？",
			"student_net", model.CategoryQnA, 210, 78, 45, now.Add(-10*time.Hour)),
		seededPost("实习经验分享会", "本周六下午有学长学姐分享实习经验，欢迎参加",
			"career_center", model.CategoryEmployment, 420, 200, 89, now.Add(-1*time.Hour)),
	)
	s.logger.Info("post store seeded with demo posts", slog.Int("posts", len(s.posts)))
}

// seededPost builds a published fixture post with synthetic engagement:
// the requested view count, a liker set of generated keys, and filler
// comments. Synthetic keys never collide with real student ids.
func seededPost(title, body, authorID string, category model.PostCategory,
	views, likes, comments int, publishedAt time.Time) *model.Post {

	p := model.NewPost(xid.New().String(), authorID, title, body, category)
	p.Publish()
	p.CreatedAt = publishedAt
	p.PublishedAt = publishedAt
	p.Views = views

	likers := make([]string, 0, likes)
	for i := 0; i < likes; i++ {
		likers = append(likers, fmt.Sprintf("seed_liker_%03d", i))
	}
	p.SetLikers(likers)

	for i := 0; i < comments; i++ {
		p.AddComment(&model.Comment{
			ID:        xid.New().String(),
			PostID:    p.ID,
			AuthorID:  fmt.Sprintf("seed_commenter_%03d", i),
			Body:      "围观",
			CreatedAt: publishedAt.Add(time.Duration(i+1) * time.Minute),
		})
	}

	return p
}
