package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/iudanet/taskkeeper/pkg/api"
)

// RunAdd создает новую задачу с заголовком из аргументов
func (c *Cli) RunAdd(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: taskkeeper add <title>")
	}
	title := strings.Join(args, " ")

	if _, err := c.ensureAuth(ctx); err != nil {
		return err
	}

	task, err := c.apiClient.CreateTask(ctx, api.TaskRequest{Title: title})
	if err != nil {
		return err
	}

	c.io.Printf("Created task %s\n", task.ID)
	return nil
}

// RunList печатает задачи, опционально отфильтрованные по статусу
func (c *Cli) RunList(ctx context.Context, args []string) error {
	status := ""
	if len(args) > 0 {
		status = args[0]
	}

	if _, err := c.ensureAuth(ctx); err != nil {
		return err
	}

	list, err := c.apiClient.ListTasks(ctx, status, 0, 0)
	if err != nil {
		return err
	}

	if len(list.Tasks) == 0 {
		c.io.Println("No tasks found.")
		return nil
	}

	for _, task := range list.Tasks {
		due := ""
		if task.DueDate != nil {
			due = " due " + task.DueDate.Format("2006-01-02")
		}
		c.io.Printf("[%s] %s  %s%s\n", task.Status, task.ID, task.Title, due)
	}
	c.io.Printf("Total: %d\n", list.Total)
	return nil
}

// RunDone помечает задачу выполненной
func (c *Cli) RunDone(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: taskkeeper done <id>")
	}
	taskID := args[0]

	if _, err := c.ensureAuth(ctx); err != nil {
		return err
	}

	task, err := c.apiClient.GetTask(ctx, taskID)
	if err != nil {
		return err
	}

	updated, err := c.apiClient.UpdateTask(ctx, taskID, api.TaskRequest{
		Title:       task.Title,
		Description: task.Description,
		Status:      "done",
		DueDate:     task.DueDate,
	})
	if err != nil {
		return err
	}

	c.io.Printf("Task %s marked as %s\n", updated.ID, updated.Status)
	return nil
}

// RunDelete удаляет задачу
func (c *Cli) RunDelete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: taskkeeper rm <id>")
	}
	taskID := args[0]

	if _, err := c.ensureAuth(ctx); err != nil {
		return err
	}

	if err := c.apiClient.DeleteTask(ctx, taskID); err != nil {
		return err
	}

	c.io.Printf("Task %s deleted\n", taskID)
	return nil
}
