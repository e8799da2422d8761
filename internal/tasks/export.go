package tasks

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"log"
	"net/http"
	"time"

	"shared-tasks-backend/internal/auth"
	"shared-tasks-backend/internal/httpx"
	"shared-tasks-backend/internal/store"
)

type exportCategory struct {
	Name  string `json:"name" xml:"name"`
	Color string `json:"color" xml:"color"`
}

type exportTask struct {
	XMLName     xml.Name        `json:"-" xml:"task"`
	ID          string          `json:"id" xml:"id"`
	Title       string          `json:"title" xml:"title"`
	Description *string         `json:"description" xml:"description"`
	Status      string          `json:"status" xml:"status"`
	Importance  string          `json:"importance" xml:"importance"`
	Category    *exportCategory `json:"category" xml:"category"`
	DueDate     *time.Time      `json:"dueDate" xml:"dueDate"`
	DueTime     *string         `json:"dueTime" xml:"dueTime"`
	CompletedAt *time.Time      `json:"completedAt" xml:"completedAt"`
	CreatedAt   time.Time       `json:"createdAt" xml:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt" xml:"updatedAt"`
}

type exportDoc struct {
	XMLName    xml.Name     `json:"-" xml:"tasks"`
	ExportDate time.Time    `json:"exportDate" xml:"exportDate,attr"`
	TotalTasks int          `json:"totalTasks" xml:"total,attr"`
	Tasks      []exportTask `json:"tasks" xml:"task"`
}

func toExport(list []store.Task, now time.Time) exportDoc {
	doc := exportDoc{ExportDate: now, TotalTasks: len(list), Tasks: make([]exportTask, 0, len(list))}
	for _, t := range list {
		e := exportTask{
			ID:          t.ID,
			Title:       t.Title,
			Description: t.Description,
			Status:      t.Status,
			Importance:  t.Importance,
			DueDate:     t.DueDate,
			DueTime:     t.DueTime,
			CompletedAt: t.CompletedAt,
			CreatedAt:   t.CreatedAt,
			UpdatedAt:   t.UpdatedAt,
		}
		if t.Category != nil {
			e.Category = &exportCategory{Name: t.Category.Name, Color: t.Category.Color}
		}
		doc.Tasks = append(doc.Tasks, e)
	}
	return doc
}

// ExportHandler streams the caller's own tasks as a JSON or XML attachment.
func ExportHandler(st store.Tasks, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpx.Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		format := r.URL.Query().Get("format")
		if format == "" {
			format = "json"
		}
		if format != "json" && format != "xml" {
			httpx.Error(w, http.StatusBadRequest, "format must be json or xml")
			return
		}

		list, _, err := st.ListTasks(r.Context(), store.TaskFilter{OwnerID: uid, SortBy: store.SortCreatedAt})
		if err != nil {
			internalError(w, logger, "export", err)
			return
		}
		now := time.Now().UTC()
		doc := toExport(list, now)
		filename := fmt.Sprintf("tasks-export-%s.%s", now.Format(time.DateOnly), format)
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))

		if format == "xml" {
			w.Header().Set("Content-Type", "application/xml")
			_, _ = w.Write([]byte(xml.Header))
			enc := xml.NewEncoder(w)
			enc.Indent("", "  ")
			if err := enc.Encode(doc); err != nil {
				logger.Printf("[WARN] tasks: export xml: %v", err)
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			logger.Printf("[WARN] tasks: export json: %v", err)
		}
	}
}
