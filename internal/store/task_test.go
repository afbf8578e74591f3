package store

import "testing"

func TestTaskStepPersistence(t *testing.T) {
	s := openTestStore(t)

	task, err := s.CreateTask("file:///music/new.mp3", 0, 0, 0)
	if err != nil {
		t.Fatalf("failed to create task: %v", err)
	}
	if task.IsStepCompleted(StepProbe) {
		t.Error("fresh task has completed steps")
	}

	if err := s.SaveTaskStep(task, StepProbe); err != nil {
		t.Fatalf("failed to save step: %v", err)
	}
	if err := s.SaveTaskStep(task, StepMetadata); err != nil {
		t.Fatalf("failed to save step: %v", err)
	}

	reloaded, err := s.TaskByMrl("file:///music/new.mp3")
	if err != nil || reloaded == nil {
		t.Fatalf("failed to reload task: %v", err)
	}
	if !reloaded.IsStepCompleted(StepProbe) || !reloaded.IsStepCompleted(StepMetadata) {
		t.Error("persisted step mask incomplete")
	}
	if reloaded.IsStepCompleted(StepThumbnail) {
		t.Error("unset step reported complete")
	}
	if reloaded.IsCompleted() {
		t.Error("task complete with one step missing")
	}

	if err := s.SaveTaskStep(reloaded, StepThumbnail); err != nil {
		t.Fatalf("failed to save step: %v", err)
	}
	if !reloaded.IsCompleted() {
		t.Error("task with all steps not complete")
	}
}

func TestUnparsedTasksFiltering(t *testing.T) {
	s := openTestStore(t)

	pending, _ := s.CreateTask("file:///a.mp3", 0, 0, 0)
	done, _ := s.CreateTask("file:///b.mp3", 0, 0, 0)
	s.SaveTaskStep(done, StepCompleted)
	fatal, _ := s.CreateTask("file:///c.mp3", 0, 0, 0)
	s.MarkTaskFatal(fatal)

	tasks, err := s.UnparsedTasks()
	if err != nil {
		t.Fatalf("failed to list tasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != pending.ID {
		t.Fatalf("expected only the pending task, got %d", len(tasks))
	}

	// Retry reset resurrects the fatal task, not the completed one.
	if err := s.ResetTaskRetries(); err != nil {
		t.Fatalf("failed to reset retries: %v", err)
	}
	tasks, _ = s.UnparsedTasks()
	if len(tasks) != 2 {
		t.Errorf("expected 2 tasks after retry reset, got %d", len(tasks))
	}
}

func TestStartTaskStepCountsAttempts(t *testing.T) {
	s := openTestStore(t)

	task, _ := s.CreateTask("file:///retry.mp3", 0, 0, 0)
	for i := 0; i < 3; i++ {
		s.StartTaskStep(task)
	}
	tasks, _ := s.UnparsedTasks()
	for _, candidate := range tasks {
		if candidate.ID == task.ID {
			t.Error("task with exhausted retries still scheduled")
		}
	}
}

func TestTaskDeletedWithFolder(t *testing.T) {
	s := openTestStore(t)

	device, _ := s.CreateDevice("task-device", false)
	folder, _ := s.CreateFolder("music", 0, device.ID, false)
	task, err := s.CreateTask("file:///music/x.mp3", folder.ID, 0, 0)
	if err != nil {
		t.Fatalf("failed to create task: %v", err)
	}
	if err := s.DeleteFolder(folder.ID); err != nil {
		t.Fatalf("failed to delete folder: %v", err)
	}
	if reloaded, _ := s.TaskByMrl(task.Mrl); reloaded != nil {
		t.Error("task survived parent folder deletion")
	}
}
