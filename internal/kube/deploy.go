package kube

import (
	"context"
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/mamatnurahmat/devops-tools/internal/deploy"
	"github.com/mamatnurahmat/devops-tools/internal/failure"
)

// Target names a Deployment as a deploy.TargetID.
func Target(namespace, deployment string) deploy.TargetID {
	return deploy.TargetID{Runtime: deploy.RuntimeKubernetes, Scope: namespace, Name: deployment}
}

// CurrentImage returns the image of the Deployment's main container. A
// missing Deployment is reported as not existing, not as an error.
func (c *Client) CurrentImage(ctx context.Context, namespace, name string) (deploy.Observation, error) {
	d, err := c.cs.AppsV1().Deployments(namespace).Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return deploy.Observation{}, nil
	}
	if err != nil {
		return deploy.Observation{}, classify("kube.current_image", err)
	}

	idx := mainContainer(d.Spec.Template.Spec.Containers, name)
	if idx < 0 {
		return deploy.Observation{Exists: true}, nil
	}
	return deploy.Observation{Image: d.Spec.Template.Spec.Containers[idx].Image, Exists: true}, nil
}

// ReadState implements deploy.StateReader.
func (c *Client) ReadState(ctx context.Context, id deploy.TargetID) (deploy.Observation, error) {
	if id.Runtime != deploy.RuntimeKubernetes {
		return deploy.Observation{}, failure.New(failure.InvalidFormat, "kube.read_state", "target %s is not a kubernetes target", id)
	}
	return c.CurrentImage(ctx, id.Scope, id.Name)
}

// Apply implements deploy.Executor.
func (c *Client) Apply(ctx context.Context, d deploy.Decision) error {
	switch d.Action {
	case deploy.Skip:
		return nil
	case deploy.Update:
		return c.setImage(ctx, d.Target.Scope, d.Target.Name, d.Desired)
	case deploy.Create:
		return c.create(ctx, d.Target.Scope, d.Target.Name, d.Desired)
	default:
		return fmt.Errorf("unknown action %q", d.Action)
	}
}

func (c *Client) setImage(ctx context.Context, namespace, name, image string) error {
	d, err := c.cs.AppsV1().Deployments(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return classify("kube.set_image", fmt.Errorf("get deployment: %w", err))
	}

	containers := d.Spec.Template.Spec.Containers
	idx := mainContainer(containers, name)
	if idx < 0 {
		return failure.New(failure.Unknown, "kube.set_image", "deployment %s/%s has no containers", namespace, name)
	}
	containers[idx].Image = image

	_, err = c.cs.AppsV1().Deployments(namespace).Update(ctx, d, metav1.UpdateOptions{})
	if err != nil {
		return classify("kube.set_image", fmt.Errorf("update deployment: %w", err))
	}
	return nil
}

func (c *Client) create(ctx context.Context, namespace, name, image string) error {
	labels := map[string]string{"app": name}
	replicas := int32(1)
	d := &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace, Labels: labels},
		Spec: appsv1.DeploymentSpec{
			Replicas: &replicas,
			Selector: &metav1.LabelSelector{MatchLabels: labels},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{{Name: name, Image: image}},
				},
			},
		},
	}

	_, err := c.cs.AppsV1().Deployments(namespace).Create(ctx, d, metav1.CreateOptions{})
	if err != nil {
		return classify("kube.create", fmt.Errorf("create deployment: %w", err))
	}
	return nil
}

// mainContainer prefers the container named after the deployment and
// falls back to the first one.
func mainContainer(containers []corev1.Container, name string) int {
	for i, c := range containers {
		if c.Name == name {
			return i
		}
	}
	if len(containers) == 0 {
		return -1
	}
	return 0
}

func classify(op string, err error) error {
	switch {
	case apierrors.IsUnauthorized(err), apierrors.IsForbidden(err):
		return failure.Wrap(failure.AuthFailed, op, err)
	case apierrors.IsTimeout(err), apierrors.IsServerTimeout(err):
		return failure.Wrap(failure.NetworkTimeout, op, err)
	}
	return failure.Network(op, err)
}
